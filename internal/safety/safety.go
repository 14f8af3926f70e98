// Package safety implements the perception loop's coarse action and
// navigation guardrails as a single composable policy object, consulted by
// the loop before every executor dispatch.
package safety

import (
	"fmt"
	"regexp"

	"github.com/user/browserstudio/internal/security"
	"github.com/user/browserstudio/internal/types"
)

// readOnlyAllowed is the action vocabulary permitted when readOnlyMode is on.
var readOnlyAllowed = map[types.ActionKind]bool{
	types.ActionScroll:   true,
	types.ActionNavigate: true,
	types.ActionWait:     true,
	types.ActionDone:     true,
	types.ActionFail:     true,
	types.ActionHover:    true,
}

// Config is the policy's construction-time settings.
type Config struct {
	ReadOnlyMode       bool
	BlockedURLPatterns []string
}

// Policy is the compiled, immutable safety filter consulted for every
// proposed action.
type Policy struct {
	readOnlyMode bool
	patterns     []*regexp.Regexp
	rawPatterns  []string
}

// New compiles cfg into a Policy. Invalid regular expressions are skipped
// rather than failing construction, since a malformed pattern should not
// take down the whole loop; callers that want strict validation should
// compile their own patterns first.
func New(cfg Config) *Policy {
	p := &Policy{readOnlyMode: cfg.ReadOnlyMode}
	for _, raw := range cfg.BlockedURLPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			continue
		}
		p.patterns = append(p.patterns, re)
		p.rawPatterns = append(p.rawPatterns, raw)
	}
	return p
}

// Decision is the result of validating a proposed action.
type Decision struct {
	Allowed bool
	Reason  string
}

// Validate checks a proposed action against read-only mode, the blocked URL
// patterns, and (for navigate actions) the private-network guard.
func (p *Policy) Validate(action types.Action) Decision {
	if p.readOnlyMode && !readOnlyAllowed[action.Kind] {
		return Decision{Allowed: false, Reason: fmt.Sprintf("read-only mode: action %q is not permitted", action.Kind)}
	}

	if action.Kind != types.ActionNavigate {
		return Decision{Allowed: true}
	}

	u := action.StringArg("url")
	if u == "" {
		return Decision{Allowed: true}
	}

	for i, re := range p.patterns {
		if re.MatchString(u) {
			return Decision{Allowed: false, Reason: fmt.Sprintf("URL %s blocked by pattern: %s", u, p.rawPatterns[i])}
		}
	}

	// security.ValidateURL closes the coarse safety gap a blocklist of URL
	// patterns alone would leave (e.g. the model improvising a raw private IP).
	if err := security.ValidateURL(u); err != nil {
		return Decision{Allowed: false, Reason: fmt.Sprintf("URL %s blocked: %v", u, err)}
	}

	return Decision{Allowed: true}
}
