package mqtt

import "strings"

const (
	TopicSeparator = "/"

	// SingleLevelWildcard matches exactly one topic level in a topic filter.
	SingleLevelWildcard = "+"
	// MultiLevelWildcard matches the remainder of the topic. It is only valid as the last
	// level of a topic filter.
	MultiLevelWildcard = "#"
)

// TrimTopic trims TopicSeparator from the start and end of the specified topic.
func TrimTopic(topic string) string {
	return strings.Trim(topic, TopicSeparator)
}

// JoinTopic joins non-empty component parts with TopicSeparator, trimming each part as it is
// appended.
func JoinTopic(parts ...string) string {
	var result strings.Builder

	for i, part := range parts {
		if part == "" || part == TopicSeparator {
			continue
		}
		result.WriteString(TrimTopic(part))

		if i != len(parts)-1 {
			result.WriteString(TopicSeparator)
		}
	}

	return result.String()
}

// MatchTopic reports whether the provided topic matches the provided topic filter, honoring
// the + (single level) and # (remaining levels) wildcards. Filters without wildcards match
// only the identical topic. Topics are compared level by level, so "a/+/c" matches "a/b/c"
// but not "a/b/d/c".
func MatchTopic(filter, topic string) bool {
	filterLevels := strings.Split(TrimTopic(filter), TopicSeparator)
	topicLevels := strings.Split(TrimTopic(topic), TopicSeparator)

	for i, level := range filterLevels {
		if level == MultiLevelWildcard {
			// '#' must be the last level of the filter, where it matches zero or more
			// remaining topic levels.
			return i == len(filterLevels)-1
		}

		if i >= len(topicLevels) {
			return false
		}

		if level != SingleLevelWildcard && level != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
