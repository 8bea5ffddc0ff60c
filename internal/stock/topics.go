package stock

const TopicEvents = "stock.events"

// PartitionKey keeps every event of one record on the same partition.
// Batch events have no single record, so they are keyed by kind.
func PartitionKey(ev Event) []byte {
	if id := ev.RecordID(); id != "" {
		return []byte(id)
	}
	return []byte(ev.Type)
}
