package payload

import "time"

// StorageKey derives the object key for a message processed at now:
// emails/YYYY/MM/DD/<messageID>.json, date in UTC. The date is the
// processing date, not the payload's email_timestream.
func StorageKey(now time.Time, messageID string) string {
	return "emails/" + now.UTC().Format("2006/01/02") + "/" + messageID + ".json"
}
