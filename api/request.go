package api

type JobReq struct {
	JobUuid string `json:"job_uuid"`
	Name    string `json:"name"`

	Directives Directives  `json:"directives"`
	Toolchain  Toolchain   `json:"toolchain"`
	Steps      []Step      `json:"steps"`
	Inputs     []InputFile `json:"inputs"`

	StopOnFailure bool `json:"stop_on_failure"`
	ArchiveLogs   bool `json:"archive_logs"`

	// Optional progress sinks used by the queue worker
	ResSqsUrl      *string `json:"res_sqs_url"`
	ResNatsSubject *string `json:"res_nats_subject"`
}

// Directives is the resource request handed to the batch scheduler.
type Directives struct {
	JobName   string   `json:"job_name"`
	Partition string   `json:"partition"`
	Nodes     int      `json:"nodes"`
	NTasks    int      `json:"ntasks"`
	Memory    string   `json:"memory"`
	Walltime  string   `json:"walltime"`
	QOS       string   `json:"qos"`
	Gres      string   `json:"gres"`
	Extra     []string `json:"extra"`
}

// Toolchain describes the module to load and the parallelization
// environment exported to every step.
type Toolchain struct {
	Module     string            `json:"module"`
	ModuleInit string            `json:"module_init"`
	ParNodes   int               `json:"parnodes"`
	ParaArch   string            `json:"para_arch"`
	SysName    string            `json:"sysname"`
	ExtraEnv   map[string]string `json:"extra_env"`
}

type Step struct {
	Name    string  `json:"name"`
	Command string  `json:"cmd"`
	Stdin   *string `json:"stdin"`
	Stdout  *string `json:"stdout"`
}

type InputFile struct {
	Name string `json:"name"`

	// Sha256 to check if file exists in cache
	Sha256 *string `json:"sha256"`
	// URL to download file if missing
	Url *string `json:"url"`
	// Content directly as an alternative to URL
	Content *string `json:"content"`
}
