package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

const (
	awsNameTag              = "Name"
	awsErrInstanceNotFound  = "InvalidInstanceID.NotFound"
	awsErrInstanceMalformed = "InvalidInstanceID.Malformed"
)

// EC2API is the subset of the EC2 client used by the aws provider.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

// awsProvider implements Provider for AWS EC2 instances. The organization of
// a node is the AWS account that owns its reservation.
type awsProvider struct {
	client  EC2API
	tagKey  string
	catalog *ImageCatalog
	logger  log.FieldLogger
}

// NewAWSProvider returns an EC2-backed Provider using client.
func NewAWSProvider(client EC2API, opts Options) Provider {
	opts = opts.withDefaults()
	return &awsProvider{client: client, tagKey: opts.TagKey, catalog: opts.Catalog, logger: opts.Logger}
}

// Node fetches an EC2 instance by instance id and maps it to core.Node.
func (p *awsProvider) Node(ctx context.Context, id string) (*core.Node, error) {
	result, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return nil, awsError(id, err)
	}

	if len(result.Reservations) == 0 || len(result.Reservations[0].Instances) == 0 {
		return nil, fmt.Errorf("describe instance %s: %w", id, core.ErrNotFound)
	}

	reservation := result.Reservations[0]
	instance := reservation.Instances[0]
	if instance.State != nil && instance.State.Name == types.InstanceStateNameTerminated {
		p.logger.WithField("id", id).Debug("instance is terminated")
		return nil, fmt.Errorf("instance %s is terminated: %w", id, core.ErrNotFound)
	}

	node := &core.Node{
		ID:       aws.ToString(instance.InstanceId),
		Provider: ProviderAWS,
	}
	for _, tag := range instance.Tags {
		if tag.Key == nil || tag.Value == nil {
			continue
		}
		switch *tag.Key {
		case awsNameTag:
			node.Name = *tag.Value
		case p.tagKey:
			node.Tag = *tag.Value
		}
	}

	if instance.Placement != nil && instance.Placement.AvailabilityZone != nil {
		node.Location = &core.Location{
			ID:    *instance.Placement.AvailabilityZone,
			Scope: core.ScopeZone,
		}
		if owner := aws.ToString(reservation.OwnerId); owner != "" {
			node.Location.Parent = &core.Location{ID: owner, Scope: core.ScopeAccount}
		}
	}

	if imageID := aws.ToString(instance.ImageId); imageID != "" {
		node.Image, err = p.image(ctx, imageID)
		if err != nil {
			return nil, err
		}
	}

	return node, nil
}

func (p *awsProvider) image(ctx context.Context, imageID string) (*core.Image, error) {
	out, err := p.client.DescribeImages(ctx, &ec2.DescribeImagesInput{ImageIds: []string{imageID}})
	if err != nil {
		return nil, fmt.Errorf("describe image %s: %w", imageID, err)
	}
	if len(out.Images) == 0 {
		// deregistered AMIs disappear from DescribeImages
		p.logger.WithField("image", imageID).Debug("image not found")
		return &core.Image{ID: imageID}, nil
	}
	return p.catalog.Image(imageID, aws.ToString(out.Images[0].Name)), nil
}

func awsError(id string, err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case awsErrInstanceNotFound:
			return fmt.Errorf("describe instance %s: %w", id, core.ErrNotFound)
		case awsErrInstanceMalformed:
			return fmt.Errorf("describe instance %s: %w: %s", id, core.ErrInvalidArgument, ae.ErrorMessage())
		}
		return fmt.Errorf("describe instance %s: %s: %w", id, ae.ErrorCode(), err)
	}
	return fmt.Errorf("describe instance %s: %w", id, err)
}

// nolint:gochecknoinits // registration-style init keeps provider wiring local to this file.
func init() {
	RegisterProvider(ProviderAWS, func(ctx context.Context, opts Options) (Provider, error) {
		var loadOpts []func(*config.LoadOptions) error
		if opts.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(opts.Region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		return NewAWSProvider(ec2.NewFromConfig(cfg), opts), nil
	})
}
