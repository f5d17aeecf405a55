package events

// Topic names are fixed; every topic maps to one transport queue of the same
// name. Adding a topic here requires provisioning its queue.
const (
	TopicUserRegistered         = "user-registered"
	TopicUserUpdated            = "user-updated"
	TopicUserDeleted            = "user-deleted"
	TopicNewEligibleParticipant = "new-eligible-participant"
	TopicFeaturesReset          = "features-reset"
	TopicAlertsUpdated          = "alerts-updated"

	// TopicGatewayChanges carries raw change-data-capture envelopes and is the
	// only topic that requires ordering-key delivery.
	TopicGatewayChanges = "gateway-changes"
)

// Topics lists every registered topic.
func Topics() []string {
	return []string{
		TopicUserRegistered,
		TopicUserUpdated,
		TopicUserDeleted,
		TopicNewEligibleParticipant,
		TopicFeaturesReset,
		TopicAlertsUpdated,
		TopicGatewayChanges,
	}
}
