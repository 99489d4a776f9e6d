package core

// EligibilityPlaceholder is replaced in channel queries with the name of the
// channel's eligibility table.
const EligibilityPlaceholder = "{eligibility_table}"

// Format is a channel file format.
type Format string

// Supported channel file formats.
const (
	FormatCSV       Format = "csv"
	FormatDelimited Format = "delimited"
	FormatXLSX      Format = "xlsx"
	FormatJSONL     Format = "jsonl"
)

// Extension returns the file extension for a format.
func (f Format) Extension() string {
	switch f {
	case FormatDelimited:
		return "txt"
	case "":
		return string(FormatCSV)
	default:
		return string(f)
	}
}

// OutputInstruction maps a channel to an extraction query and file policy.
type OutputInstruction struct {
	Channel      string `koanf:"-"`
	SQL          string `koanf:"sql" validate:"required"`
	FileLocation string `koanf:"file_location"`
	FileBaseName string `koanf:"file_base_name"`
	Format       Format `koanf:"format" validate:"omitempty,oneof=csv delimited xlsx jsonl"`
	Delimiter    string `koanf:"delimiter" validate:"omitempty,len=1"`
	Header       *bool  `koanf:"header"`
}

// WantHeader reports whether a header row should be written (default true).
func (o OutputInstruction) WantHeader() bool {
	return o.Header == nil || *o.Header
}
