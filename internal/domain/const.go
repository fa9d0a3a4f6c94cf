package domain

const (
	RequesterIdCtxKey      = "dv-requesterId"
	RequesterAccountCtxKey = "dv-requesterAccount"
)

const (
	AccessTokenCookie  = "AccessToken"
	RefreshTokenCookie = "RefreshToken"
)

// Event types published on a topic channel.
const (
	EventTypeVote       = "vote"
	EventTypePermission = "permission"
	EventTypeResult     = "result"
)

// TopicChannel is the pub/sub channel carrying events of one voting topic.
func TopicChannel(votingTopicID string) string {
	return "topic:" + votingTopicID
}
