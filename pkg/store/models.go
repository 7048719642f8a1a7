package store

// Brand classifies a GPU device description.
type Brand string

// GPU brand constants.
const (
	BrandNvidia  Brand = "nvidia"
	BrandAMD     Brand = "amd"
	BrandIntel   Brand = "intel"
	BrandUnknown Brand = "unknown"
)

// Run is one raw benchmark submission. Runs are append-only: created once at
// import and never mutated, the source of truth for every derived table.
//
// VRAMUsage keeps its historical column name; submissions reuse the field for
// "/"-delimited iteration-rate samples.
type Run struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	Timestamp  *string `json:"timestamp"`
	VRAMUsage  *string `gorm:"column:vram_usage" json:"vram_usage"`
	Info       *string `json:"info"`
	SystemInfo *string `json:"system_info"`
	ModelInfo  *string `json:"model_info"`
	DeviceInfo *string `json:"device_info"`
	Xformers   *string `json:"xformers"`
	ModelName  *string `json:"model_name"`
	User       *string `json:"user"`
	Notes      *string `json:"notes"`
}

// PerformanceResult holds the parsed throughput of one run: the raw sample
// string and the derived average iteration rate.
type PerformanceResult struct {
	ID     uint     `gorm:"primaryKey" json:"id"`
	RunID  *uint    `gorm:"index" json:"run_id"`
	Run    *Run     `gorm:"foreignKey:RunID" json:"-"`
	ITS    *string  `gorm:"column:its" json:"its"`
	AvgITS *float64 `gorm:"column:avg_its" json:"avg_its"`
}

// AppDetail holds the parsed application identity of one run.
type AppDetail struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	RunID   *uint   `gorm:"index" json:"run_id"`
	Run     *Run    `gorm:"foreignKey:RunID" json:"-"`
	AppName *string `json:"app_name"`
	Updated *string `json:"updated"`
	Hash    *string `json:"hash"`
	URL     *string `json:"url"`
}

// SystemInfo holds the parsed host environment of one run.
type SystemInfo struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	RunID   *uint   `gorm:"index" json:"run_id"`
	Run     *Run    `gorm:"foreignKey:RunID" json:"-"`
	Arch    *string `json:"arch"`
	CPU     *string `gorm:"column:cpu" json:"cpu"`
	System  *string `json:"system"`
	Release *string `json:"release"`
	Python  *string `json:"python"`
}

// Library holds the parsed dependency versions of one run.
//
// Xformers is copied from the run-level field; Xformers1 is the version
// parsed out of the library field. Both are kept addressable, matching the
// source data rather than collapsing them into one column.
type Library struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	RunID        *uint   `gorm:"index" json:"run_id"`
	Run          *Run    `gorm:"foreignKey:RunID" json:"-"`
	Torch        *string `json:"torch"`
	Xformers     *string `json:"xformers"`
	Xformers1    *string `gorm:"column:xformers1" json:"xformers1"`
	Diffusers    *string `json:"diffusers"`
	Transformers *string `json:"transformers"`
}

// GPU holds the parsed and classified device of one run. Brand is empty
// until the classifier runs; afterwards it is always one of the Brand
// constants. IsLaptop stays nil until classified.
type GPU struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	RunID    *uint   `gorm:"index" json:"run_id"`
	Run      *Run    `gorm:"foreignKey:RunID" json:"-"`
	Device   *string `json:"device"`
	Driver   *string `json:"driver"`
	GPUChip  *string `gorm:"column:gpu_chip" json:"gpu_chip"`
	Brand    Brand   `json:"brand"`
	IsLaptop *bool   `json:"is_laptop"`
}

// RunMoreDetails is the denormalized per-run summary with the model link.
// ModelMapID is nil until the model mapper finds an exact match and is never
// overwritten once set.
type RunMoreDetails struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      *uint     `gorm:"index" json:"run_id"`
	Run        *Run      `gorm:"foreignKey:RunID" json:"-"`
	Timestamp  *string   `json:"timestamp"`
	ModelName  *string   `json:"model_name"`
	User       *string   `gorm:"column:user" json:"user"`
	Notes      *string   `json:"notes"`
	ModelMapID *uint     `gorm:"index" json:"model_map_id"`
	ModelMap   *ModelMap `gorm:"foreignKey:ModelMapID" json:"-"`
}

// ModelMap is the dictionary of known model names.
type ModelMap struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ModelName string  `gorm:"uniqueIndex;not null" json:"model_name"`
	BaseModel *string `json:"base_model"`
}

// GPUBase is a canonical base GPU in the normalization dictionary.
type GPUBase struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"uniqueIndex;not null" json:"name"`
	Brand Brand  `json:"brand"`
}

// GPUMap links a raw GPU name to its canonical base GPU.
type GPUMap struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	GPUName   string   `gorm:"column:gpu_name;uniqueIndex;not null" json:"gpu_name"`
	BaseGPUID *uint    `gorm:"column:base_gpu_id;index" json:"base_gpu_id"`
	BaseGPU   *GPUBase `gorm:"foreignKey:BaseGPUID" json:"-"`
}

// NullnessCount is one bucket of the app-detail analysis: how many rows share
// a given (app_name IS NULL, url IS NULL) combination.
type NullnessCount struct {
	AppNameNull bool  `json:"app_name_null"`
	URLNull     bool  `json:"url_null"`
	Count       int64 `json:"count"`
}
