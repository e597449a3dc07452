package titan

import uuid "github.com/satori/go.uuid"

// GenerateTraceID returns a fresh correlation id for one command's log
// lines, the same uuid source db.NewObjectID uses for hash identity.
func GenerateTraceID() string {
	return uuid.NewV4().String()
}
