package integration

// ConnectSlackRequest connects a Slack workspace with a bot token
type ConnectSlackRequest struct {
	AccessToken string `json:"access_token" validate:"required,min=1"`
}

// ConnectGitLabRequest connects a GitLab instance with a personal access token
type ConnectGitLabRequest struct {
	AccessToken string  `json:"access_token" validate:"required,min=1"`
	BaseURL     *string `json:"base_url,omitempty" validate:"omitempty,url"`
	ProjectIDs  []int64 `json:"project_ids,omitempty"`
}
