package repository

// Bucket is the aggregation width of a step series.
type Bucket string

const (
	BucketHour Bucket = "hour"
	BucketDay  Bucket = "day"
)

func IsValidBucket(b Bucket) bool {
	switch b {
	case BucketHour, BucketDay:
		return true
	default:
		return false
	}
}

// NormalizeBucket converts raw string to a valid bucket (or hour).
func NormalizeBucket(s string) Bucket {
	b := Bucket(s)
	if IsValidBucket(b) {
		return b
	}
	return BucketHour
}
