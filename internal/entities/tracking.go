package entities

import "time"

// BotComment enumerates the kinds of comments the bot leaves on pull requests.
type BotComment int

const (
	BotCommentWelcome BotComment = iota + 1
	BotCommentNeedCLA
	BotCommentContractor
	BotCommentCoreCommitter
	BotCommentBlended
	BotCommentOKToTest
	BotCommentClosed
	BotCommentMerged
)

var botCommentNames = map[BotComment]string{
	BotCommentWelcome:       "WELCOME",
	BotCommentNeedCLA:       "NEED_CLA",
	BotCommentContractor:    "CONTRACTOR",
	BotCommentCoreCommitter: "CORE_COMMITTER",
	BotCommentBlended:       "BLENDED",
	BotCommentOKToTest:      "OK_TO_TEST",
	BotCommentClosed:        "CLOSED",
	BotCommentMerged:        "MERGED",
}

func (b BotComment) String() string {
	if n, ok := botCommentNames[b]; ok {
		return n
	}
	return "UNKNOWN"
}

// Jira projects.
const (
	ProjectOSPR    = "OSPR"
	ProjectBlended = "BLENDED"
)

// Jira statuses the tracker sets directly.
const (
	StatusNeedsTriage            = "Needs Triage"
	StatusCommunityManagerReview = "Community Manager Review"
	StatusCommunityReview        = "Open edX Community Review"
	StatusMerged                 = "Merged"
	StatusRejected               = "Rejected"
)

// KnownStatuses is the OSPR workflow. Their lowercased names are GitHub labels
// owned by the bot.
var KnownStatuses = []string{
	StatusNeedsTriage,
	"Waiting on Author",
	"Blocked by Other Work",
	StatusRejected,
	StatusMerged,
	StatusCommunityManagerReview,
	StatusCommunityReview,
	"Awaiting Prioritization",
	"Product Review",
	"Engineering Review",
	"Architecture Review",
	"Changes Requested",
}

// Labels set by the tracker.
const (
	GitHubLabelOpenSource    = "open-source-contribution"
	GitHubLabelCoreCommitter = "core committer"
	GitHubLabelBlended       = "blended"
	JiraLabelCoreCommitter   = "core-committer"
	JiraLabelBlended         = "blended"
)

// IssueTypePullRequestReview is the Jira issue type of tracking issues.
const IssueTypePullRequestReview = "Pull Request Review"

// TrackingState is the information we want to have for a pull request, either
// as it is now (current) or as it should be (desired).
type TrackingState struct {
	BotComments Set[BotComment]
	// BotCommentID is the first existing bot comment, zero when there is none.
	BotCommentID int64

	JiraID string
	// JiraActualID differs from JiraID when the issue was moved, and is empty
	// when the mentioned issue no longer exists.
	JiraActualID    string
	JiraProject     string
	JiraTitle       string
	JiraDescription string
	JiraStatus      string
	JiraLabels      Set[string]
	JiraEpic        *JiraIssue
	JiraExtraFields []ExtraField

	GitHubLabels Set[string]
}

// NewTrackingState returns a state with empty sets.
func NewTrackingState() *TrackingState {
	return &TrackingState{
		BotComments:  Set[BotComment]{},
		JiraLabels:   Set[string]{},
		GitHubLabels: Set[string]{},
	}
}

// EpicKey returns the epic issue key or "".
func (s *TrackingState) EpicKey() string {
	if s.JiraEpic == nil {
		return ""
	}
	return s.JiraEpic.Key
}

// TrackingResult is the outcome of reconciling one pull request.
type TrackingResult struct {
	JiraKey string `json:"jira_key,omitempty"`
	Changed bool   `json:"changed"`
}

// RescanResult lists the issues created while rescanning a repository.
type RescanResult struct {
	Repo    string         `json:"repo"`
	Created map[int]string `json:"created"`
}

// Activity is a GitHub event recorded on the tracking issues of a pull request.
type Activity struct {
	Repo        string    `json:"repo"`
	Number      int       `json:"number"`
	HTMLURL     string    `json:"html_url"`
	Sender      string    `json:"sender"`
	SenderType  string    `json:"sender_type"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

// RescanProgress reports how far a repository rescan got.
type RescanProgress struct {
	Repo        string `json:"repo"`
	CurrentPage int    `json:"current_page"`
	Created     int    `json:"created"`
}
