package explain

// Record is an explanation of one function.
type Record struct {
	FileID      string `json:"fileId"`
	Address     string `json:"address"`
	Explanation string `json:"explanation"`
	// Source is the tier that served the record: memory, disk or llm.
	Source string `json:"-"`
}
