package homework

// Status is the review state reported by the API.
type Status string

const (
	StatusRejected  Status = "rejected"
	StatusReviewing Status = "reviewing"
	StatusApproved  Status = "approved"
)

// Submission is one homework item as returned by the API.
type Submission struct {
	Name   string `json:"homework_name"`
	Status Status `json:"status"`
}

// Batch is the result of one successful poll.
//
// Cursor is the server-reported current_date, or the requested cursor when
// the server omitted it.
type Batch struct {
	Submissions []Submission
	Cursor      int64
}

// Latest returns the first (most recent) submission, if any.
func (b Batch) Latest() (Submission, bool) {
	if len(b.Submissions) == 0 {
		return Submission{}, false
	}
	return b.Submissions[0], true
}
