package redisstore

// Coordination store key layout. All values are strings; queues and
// semaphores are lists, jobs:processing is a set, job records are hashes.
const (
	QueueHigh     = "queue:high"
	QueueLow      = "queue:low"
	QueueDLQ      = "queue:dlq"
	ProcessingSet = "jobs:processing"
	SemGlobal     = "semaphore:global"
	SemAI         = "semaphore:ai"
)

// JobKey returns the hash key for a job record.
func JobKey(id string) string { return "job:" + id }
