// File: internal/webhook/payload.go
// Description: the subset of GitHub's webhook payload shapes the intake
// actually reads. Decoding goes through json-iterator (teacher dependency,
// aliased as json the same way internal/agent/scan_executor.go does) rather
// than encoding/json.
package webhook

import (
	json "github.com/json-iterator/go"
)

// pullRequestEvent is the payload for the "pull_request" event.
type pullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Number int    `json:"number"`
		Head   ref    `json:"head"`
		Base   ref    `json:"base"`
		Body   string `json:"body"`
	} `json:"pull_request"`
	Repository repository `json:"repository"`
}

type ref struct {
	SHA string `json:"sha"`
	Ref string `json:"ref"`
}

type repository struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Name     string `json:"name"`
	Owner    struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// installationEvent is the payload for the "installation" event.
type installationEvent struct {
	Action       string `json:"action"`
	Installation struct {
		ID      int64 `json:"id"`
		Account struct {
			Login string `json:"login"`
		} `json:"account"`
	} `json:"installation"`
	Repositories []repository `json:"repositories"`
}

// pingEvent is the payload for the "ping" event; only Zen is surfaced, and
// only for logging.
type pingEvent struct {
	Zen string `json:"zen"`
}

func decode[T any](body []byte) (T, error) {
	var v T
	err := json.Unmarshal(body, &v)
	return v, err
}

func ownerAndRepo(r repository) (owner, name string) {
	if r.Owner.Login != "" {
		return r.Owner.Login, r.Name
	}
	// full_name is "owner/name"; fall back to it when owner.login is absent,
	// which some installation payloads omit.
	for i := range r.FullName {
		if r.FullName[i] == '/' {
			return r.FullName[:i], r.FullName[i+1:]
		}
	}
	return "", r.FullName
}
