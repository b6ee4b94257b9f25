package aws

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
)

// IAMAPI is the subset of the IAM service client used by the audit engine
type IAMAPI interface {
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListMFADevices(ctx context.Context, params *iam.ListMFADevicesInput, optFns ...func(*iam.Options)) (*iam.ListMFADevicesOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	ListGroupsForUser(ctx context.Context, params *iam.ListGroupsForUserInput, optFns ...func(*iam.Options)) (*iam.ListGroupsForUserOutput, error)
	ListAttachedUserPolicies(ctx context.Context, params *iam.ListAttachedUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error)
	ListAttachedGroupPolicies(ctx context.Context, params *iam.ListAttachedGroupPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedGroupPoliciesOutput, error)
	ListUserPolicies(ctx context.Context, params *iam.ListUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListUserPoliciesOutput, error)
	ListGroupPolicies(ctx context.Context, params *iam.ListGroupPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListGroupPoliciesOutput, error)
	GetUserPolicy(ctx context.Context, params *iam.GetUserPolicyInput, optFns ...func(*iam.Options)) (*iam.GetUserPolicyOutput, error)
	GetGroupPolicy(ctx context.Context, params *iam.GetGroupPolicyInput, optFns ...func(*iam.Options)) (*iam.GetGroupPolicyOutput, error)
}

// Gateway wraps the IAM API with full pagination draining and error
// classification. It is safe for concurrent use by multiple goroutines.
type Gateway struct {
	api IAMAPI
}

// NewGateway loads AWS configuration and returns a Gateway. IAM is a global
// service; region only selects the API endpoint. SDK-level retries are
// disabled because the audit engine owns the retry policy.
func NewGateway(ctx context.Context, profile, region string) (*Gateway, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(1),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	return &Gateway{api: iam.NewFromConfig(cfg)}, nil
}

// NewGatewayFromAPI wraps an existing IAM API client
func NewGatewayFromAPI(api IAMAPI) *Gateway {
	return &Gateway{api: api}
}

// ListUsers returns every IAM user in the account
func (g *Gateway) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	var marker *string

	for {
		out, err := g.api.ListUsers(ctx, &iam.ListUsersInput{Marker: marker})
		if err != nil {
			return nil, wrapErr("ListUsers", err)
		}

		for _, u := range out.Users {
			users = append(users, models.User{
				UserName:   aws.ToString(u.UserName),
				UserID:     aws.ToString(u.UserId),
				ARN:        aws.ToString(u.Arn),
				CreateDate: u.CreateDate,
			})
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return users, nil
}

// ListMFADevices returns the serial numbers of MFA devices bound to a user
func (g *Gateway) ListMFADevices(ctx context.Context, userName string) ([]string, error) {
	var serials []string
	var marker *string

	for {
		out, err := g.api.ListMFADevices(ctx, &iam.ListMFADevicesInput{
			UserName: aws.String(userName),
			Marker:   marker,
		})
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("ListMFADevices(%s)", userName), err)
		}

		for _, d := range out.MFADevices {
			serials = append(serials, aws.ToString(d.SerialNumber))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return serials, nil
}

// ListAccessKeys returns access key metadata for a user. Age fields are
// left for the engine to compute against the run timestamp.
func (g *Gateway) ListAccessKeys(ctx context.Context, userName string) ([]models.AccessKeyInfo, error) {
	var keys []models.AccessKeyInfo
	var marker *string

	for {
		out, err := g.api.ListAccessKeys(ctx, &iam.ListAccessKeysInput{
			UserName: aws.String(userName),
			Marker:   marker,
		})
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("ListAccessKeys(%s)", userName), err)
		}

		for _, k := range out.AccessKeyMetadata {
			status := models.AccessKeyInactive
			if k.Status == types.StatusTypeActive {
				status = models.AccessKeyActive
			}
			keys = append(keys, models.AccessKeyInfo{
				KeyID:      aws.ToString(k.AccessKeyId),
				CreateDate: k.CreateDate,
				Status:     status,
			})
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return keys, nil
}

// ListGroupsForUser returns the names of groups the user belongs to
func (g *Gateway) ListGroupsForUser(ctx context.Context, userName string) ([]string, error) {
	var groups []string
	var marker *string

	for {
		out, err := g.api.ListGroupsForUser(ctx, &iam.ListGroupsForUserInput{
			UserName: aws.String(userName),
			Marker:   marker,
		})
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("ListGroupsForUser(%s)", userName), err)
		}

		for _, grp := range out.Groups {
			groups = append(groups, aws.ToString(grp.GroupName))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return groups, nil
}

// ListAttachedUserPolicies returns names of managed policies attached to a user
func (g *Gateway) ListAttachedUserPolicies(ctx context.Context, userName string) ([]string, error) {
	var names []string
	var marker *string

	for {
		out, err := g.api.ListAttachedUserPolicies(ctx, &iam.ListAttachedUserPoliciesInput{
			UserName: aws.String(userName),
			Marker:   marker,
		})
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("ListAttachedUserPolicies(%s)", userName), err)
		}

		for _, p := range out.AttachedPolicies {
			names = append(names, aws.ToString(p.PolicyName))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return names, nil
}

// ListAttachedGroupPolicies returns names of managed policies attached to a group
func (g *Gateway) ListAttachedGroupPolicies(ctx context.Context, groupName string) ([]string, error) {
	var names []string
	var marker *string

	for {
		out, err := g.api.ListAttachedGroupPolicies(ctx, &iam.ListAttachedGroupPoliciesInput{
			GroupName: aws.String(groupName),
			Marker:    marker,
		})
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("ListAttachedGroupPolicies(%s)", groupName), err)
		}

		for _, p := range out.AttachedPolicies {
			names = append(names, aws.ToString(p.PolicyName))
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return names, nil
}

// ListUserPolicyNames returns names of inline policies embedded on a user
func (g *Gateway) ListUserPolicyNames(ctx context.Context, userName string) ([]string, error) {
	var names []string
	var marker *string

	for {
		out, err := g.api.ListUserPolicies(ctx, &iam.ListUserPoliciesInput{
			UserName: aws.String(userName),
			Marker:   marker,
		})
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("ListUserPolicies(%s)", userName), err)
		}

		names = append(names, out.PolicyNames...)

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return names, nil
}

// ListGroupPolicyNames returns names of inline policies embedded on a group
func (g *Gateway) ListGroupPolicyNames(ctx context.Context, groupName string) ([]string, error) {
	var names []string
	var marker *string

	for {
		out, err := g.api.ListGroupPolicies(ctx, &iam.ListGroupPoliciesInput{
			GroupName: aws.String(groupName),
			Marker:    marker,
		})
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("ListGroupPolicies(%s)", groupName), err)
		}

		names = append(names, out.PolicyNames...)

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return names, nil
}

// GetUserPolicyDocument fetches one inline user policy as decoded JSON.
// IAM returns policy documents URL-encoded.
func (g *Gateway) GetUserPolicyDocument(ctx context.Context, userName, policyName string) (string, error) {
	out, err := g.api.GetUserPolicy(ctx, &iam.GetUserPolicyInput{
		UserName:   aws.String(userName),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		return "", wrapErr(fmt.Sprintf("GetUserPolicy(%s/%s)", userName, policyName), err)
	}

	return decodeDocument(aws.ToString(out.PolicyDocument)), nil
}

// GetGroupPolicyDocument fetches one inline group policy as decoded JSON
func (g *Gateway) GetGroupPolicyDocument(ctx context.Context, groupName, policyName string) (string, error) {
	out, err := g.api.GetGroupPolicy(ctx, &iam.GetGroupPolicyInput{
		GroupName:  aws.String(groupName),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		return "", wrapErr(fmt.Sprintf("GetGroupPolicy(%s/%s)", groupName, policyName), err)
	}

	return decodeDocument(aws.ToString(out.PolicyDocument)), nil
}

// decodeDocument percent-decodes a policy document. PathUnescape keeps a
// literal "+" intact, which QueryUnescape would turn into a space.
func decodeDocument(doc string) string {
	if decoded, err := url.PathUnescape(doc); err == nil {
		return decoded
	}
	return doc
}
