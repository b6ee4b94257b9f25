package utils

// knownRegions holds the AWS region codes accepted for the IAM endpoint.
// IAM is a global service; the region only picks the API endpoint.
var knownRegions = map[string]bool{
	"us-east-1":      true,
	"us-east-2":      true,
	"us-west-1":      true,
	"us-west-2":      true,
	"af-south-1":     true,
	"ap-east-1":      true,
	"ap-south-1":     true,
	"ap-northeast-1": true,
	"ap-northeast-2": true,
	"ap-northeast-3": true,
	"ap-southeast-1": true,
	"ap-southeast-2": true,
	"ca-central-1":   true,
	"eu-central-1":   true,
	"eu-west-1":      true,
	"eu-west-2":      true,
	"eu-west-3":      true,
	"eu-north-1":     true,
	"eu-south-1":     true,
	"me-south-1":     true,
	"sa-east-1":      true,
}

// IsValidRegion checks if a region is valid
func IsValidRegion(region string) bool {
	return knownRegions[region]
}

// GetDefaultRegion returns the default AWS region
func GetDefaultRegion() string {
	return "us-east-1"
}
