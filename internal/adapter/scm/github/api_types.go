package github

// pullRequestResponse is the subset of the pulls API response we read.
type pullRequestResponse struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Head   struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// repoResponse is the subset of the repos API response we read.
type repoResponse struct {
	DefaultBranch string `json:"default_branch"`
}

// commitResponse is the subset of the commits API response we read.
type commitResponse struct {
	SHA string `json:"sha"`
}

// treeResponse is the subset of the git trees API response we read.
type treeResponse struct {
	SHA       string      `json:"sha"`
	Truncated bool        `json:"truncated"`
	Tree      []treeEntry `json:"tree"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
}

// errorResponse is GitHub's standard error body.
type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Resource string `json:"resource"`
		Field    string `json:"field"`
		Code     string `json:"code"`
		Message  string `json:"message"`
	} `json:"errors"`
}
