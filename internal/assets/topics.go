package assets

const (
	TopicLifecycle     = "asset.lifecycle"
	TopicNotifications = "asset.notifications"
)

// Partition key = asset_id, so every event of one asset keeps its order.
func PartitionKey(assetID string) []byte { return []byte(assetID) }
