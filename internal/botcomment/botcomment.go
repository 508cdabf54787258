// Package botcomment knows the comments the bot leaves on pull requests: how to
// recognize them in existing comment bodies and how to write them.
package botcomment

import (
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

// OKToTestMarker asks Jenkins to run the test jobs for the pull request.
const OKToTestMarker = "<!-- jenkins ok to test -->"

// Indicators lists strings found in each kind of comment. The first one is the
// canonical marker and the only one used for detection.
var Indicators = map[entities.BotComment][]string{
	entities.BotCommentWelcome: {
		"<!-- comment:external_pr -->",
		"Thanks for the pull request,",
	},
	entities.BotCommentNeedCLA: {
		"<!-- comment:no_cla -->",
		"We can't start reviewing your pull request until you've submimitted",
	},
	entities.BotCommentContractor: {
		"<!-- comment:contractor -->",
		"company that does contract work for edX",
	},
	entities.BotCommentCoreCommitter: {
		"<!-- comment:welcome-core-committer -->",
	},
	entities.BotCommentBlended: {
		"<!-- comment:welcome-blended -->",
	},
	entities.BotCommentOKToTest: {
		OKToTestMarker,
	},
}

// IsKind reports whether text is a comment of this kind.
func IsKind(kind entities.BotComment, text string) bool {
	ind, ok := Indicators[kind]
	if !ok || len(ind) == 0 {
		return false
	}
	return strings.Contains(text, ind[0])
}

// Kinds returns every kind of bot comment present in text.
func Kinds(text string) entities.Set[entities.BotComment] {
	out := entities.Set[entities.BotComment]{}
	for kind := range Indicators {
		if IsKind(kind, text) {
			out.Add(kind)
		}
	}
	return out
}
