package protocol

// BoardConfig provides the board parameters shared by the server and its clients.
type BoardConfig struct {
	// MaxContentLength caps the byte length of a confession. Zero disables the cap.
	MaxContentLength int `json:"max_content_length" yaml:"max_content_length"`
}

// DefaultBoardConfig returns the parameters used when no configuration is given.
func DefaultBoardConfig() *BoardConfig {
	return &BoardConfig{
		MaxContentLength: 1024,
	}
}
