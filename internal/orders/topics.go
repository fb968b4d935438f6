package orders

const (
	TopicOrderFinalized = "storefront.order.finalized"
	TopicOrderStatus    = "storefront.order.status"
	TopicLowStock       = "storefront.inventory.low_stock"
)

// Partition key = order_id, so every event for one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
