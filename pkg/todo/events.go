package todo

import "strconv"

// Event names delivered to clients. Payloads are positional, in the order given.
const (
	// (listId, name, owner) on the owner's user topic.
	EventListCreated = "ReceiveListCreated"
	// (listId, name, owner) on a newly shared identity's user topic.
	EventListShared = "ReceiveListShared"
	// (listId, newName) on the list topic.
	EventListUpdated = "ReceiveListUpdated"
	// (listId, sharedWith) on the list topic.
	EventListSharingUpdated = "ReceiveListSharingUpdated"
	// (listId) on a removed identity's user topic.
	EventListUnshared = "ReceiveListUnshared"
	// (listId) on the list topic and every shared user topic.
	EventListDeleted = "ReceiveListDeleted"
	// (listId, taskId, title, description, dueDate, assignee)
	EventTaskAdded = "ReceiveTaskAdded"
	// (taskId, isCompleted)
	EventTaskToggled = "ReceiveTaskToggled"
	// (listId, taskId)
	EventTaskDeleted = "ReceiveTaskDeleted"
	// (taskId, title, description, dueDate, assignee, isCompleted)
	EventTaskUpdated = "ReceiveTaskUpdated"
)

const userTopicPrefix = "user_"

// ListTopic is joined by everyone viewing one list.
func ListTopic(listID int64) string {
	return strconv.FormatInt(listID, 10)
}

// UserTopic is an identity's personal channel.
func UserTopic(identity string) string {
	return userTopicPrefix + identity
}
