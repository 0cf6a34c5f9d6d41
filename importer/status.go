package importer

import "catalog-backend/models"

// clientTransitions are the status changes a user may request on a job.
var clientTransitions = map[string][]string{
	models.ImportStatusPending:    {models.ImportStatusCancelled},
	models.ImportStatusProcessing: {models.ImportStatusPaused, models.ImportStatusCancelled},
	models.ImportStatusPaused:     {models.ImportStatusProcessing, models.ImportStatusCancelled},
}

// CanTransition reports whether a client may move a job from one status to another.
// Terminal statuses never move.
func CanTransition(from, to string) bool {
	for _, allowed := range clientTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
