package orders

const (
	TopicReceiptRequested = "order.receipt.requested"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
