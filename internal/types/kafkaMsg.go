package types

type UploadMsg struct {
	Request_id string `validate:"required"`
	Metadata   struct {
		Record_set_name string `validate:"required"`
		Source          string `validate:"required"`
	} `validate:"required"`
	// Files carries the export URLs. Vendor API uploads have none, so the
	// per-source requirement lives in the processor rather than here.
	Files          []string
	Render_outputs []string
}

type ReportEventMsg struct {
	Job_id        string `validate:"required"`
	Record_set_id string `validate:"required"`
	State         string `validate:"required"`
	Attempts      int
	Artifacts     []ArtifactRef
}

type ArtifactRef struct {
	Kind         string `validate:"required"`
	Storage_key  string `validate:"required"`
	Content_hash string `validate:"required"`
	Byte_size    int64
	Degraded     bool
}
