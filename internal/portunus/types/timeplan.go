package types

// TimePlanDays is the number of day buckets in a plan: monday..sunday, holiday.
const TimePlanDays = 8

// TimePlanRecord is a time plan as persisted and as delivered by the online
// authority. Times holds four HH:MM:SS strings per day bucket, in order:
// first start, first end, second start, second end.
type TimePlanRecord struct {
	ID          int
	Name        string
	Description string
	Action      Action
	Times       [TimePlanDays * 4]string
}
