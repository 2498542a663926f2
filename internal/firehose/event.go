package firehose

// jetstreamEvent is the raw JSON structure from Jetstream.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

// jetstreamCommit is the raw commit data from Jetstream.
type jetstreamCommit struct {
	Rev        string         `json:"rev"`
	Operation  string         `json:"operation"`
	Collection string         `json:"collection"`
	RKey       string         `json:"rkey"`
	Record     *commentRecord `json:"record,omitempty"`
	CID        string         `json:"cid"`
}

// commentRecord is the part of a space.myspace.comment record the index needs.
type commentRecord struct {
	Type      string `json:"$type"`
	TargetDID string `json:"targetDid"`
	CreatedAt string `json:"createdAt"`
}
