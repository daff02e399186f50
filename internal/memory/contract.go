package memory

import "github.com/hsiatein/helenium/internal/proto"

// Chat roles, grounded on heleny-proto's ChatRole::to_str.
const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// PostRequest appends one entry to the log. Grounded on
// MemoryServiceMessage::Post.
type PostRequest struct {
	Role    string
	Content []byte
}

// GetRequest asks for a page of display messages older than
// IDUpperBound (0 means most recent). Grounded on
// MemoryServiceMessage::Get.
type GetRequest struct {
	IDUpperBound int64
	Reply        chan []proto.MemoryEntry
}

// GetChatMemoriesRequest asks for the in-memory short-term window used
// to seed a chat model's context. Grounded on
// MemoryServiceMessage::GetMemoryEntries.
type GetChatMemoriesRequest struct {
	Reply chan []proto.MemoryEntry
}

// DeleteRequest removes one entry by ID from both the short-term
// buffer and the log. Grounded on MemoryServiceMessage::Delete.
type DeleteRequest struct {
	ID int64
}
