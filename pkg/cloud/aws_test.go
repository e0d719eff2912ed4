package cloud

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

// fakeEC2 answers DescribeInstances/DescribeImages from canned data.
type fakeEC2 struct {
	reservations []types.Reservation
	images       []types.Image
	instancesErr error
	imagesErr    error
}

func (f *fakeEC2) DescribeInstances(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if f.instancesErr != nil {
		return nil, f.instancesErr
	}
	return &ec2.DescribeInstancesOutput{Reservations: f.reservations}, nil
}

func (f *fakeEC2) DescribeImages(_ context.Context, _ *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	return &ec2.DescribeImagesOutput{Images: f.images}, nil
}

func webInstance() types.Reservation {
	return types.Reservation{
		OwnerId: aws.String("123456789012"),
		Instances: []types.Instance{{
			InstanceId: aws.String("i-0abc"),
			ImageId:    aws.String("ami-1"),
			Placement:  &types.Placement{AvailabilityZone: aws.String("us-west-2a")},
			State:      &types.InstanceState{Name: types.InstanceStateNameRunning},
			Tags: []types.Tag{
				{Key: aws.String("Name"), Value: aws.String("web-1")},
				{Key: aws.String("group"), Value: aws.String("web")},
				{Key: aws.String("ignored"), Value: nil},
			},
		}},
	}
}

func TestAWSProvider_MapsInstance(t *testing.T) {
	client := &fakeEC2{
		reservations: []types.Reservation{webInstance()},
		images: []types.Image{{
			ImageId: aws.String("ami-1"),
			Name:    aws.String("ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-20240101"),
		}},
	}

	node, err := NewAWSProvider(client, Options{}).Node(context.Background(), "i-0abc")
	if err != nil {
		t.Fatalf("Node returned error: %v", err)
	}

	if node.ID != "i-0abc" || node.Name != "web-1" || node.Tag != "web" || node.Provider != ProviderAWS {
		t.Errorf("unexpected node identity: %+v", node)
	}
	if org, ok := node.Organization(); !ok || org != "123456789012" {
		t.Errorf("Organization() = (%q, %v), want owner account", org, ok)
	}
	if node.Location.ID != "us-west-2a" || node.Location.Scope != core.ScopeZone {
		t.Errorf("unexpected location: %+v", node.Location)
	}
	if node.Image == nil || node.Image.DefaultCredentials == nil || node.Image.DefaultCredentials.Account != "ubuntu" {
		t.Errorf("expected ubuntu image defaults, got %+v", node.Image)
	}
	if node.Credentials != nil {
		t.Errorf("raw node should carry no credentials, got %+v", node.Credentials)
	}
}

func TestAWSProvider_CustomTagKey(t *testing.T) {
	r := webInstance()
	r.Instances[0].Tags = append(r.Instances[0].Tags, types.Tag{Key: aws.String("team"), Value: aws.String("payments")})
	client := &fakeEC2{reservations: []types.Reservation{r}}

	node, err := NewAWSProvider(client, Options{TagKey: "team"}).Node(context.Background(), "i-0abc")
	if err != nil {
		t.Fatalf("Node returned error: %v", err)
	}
	if node.Tag != "payments" {
		t.Errorf("Tag = %q, want payments", node.Tag)
	}
	if node.Image == nil || node.Image.ID != "ami-1" || node.Image.DefaultCredentials != nil {
		t.Errorf("unknown image should have id only, got %+v", node.Image)
	}
}

func TestAWSProvider_NotFound(t *testing.T) {
	terminated := webInstance()
	terminated.Instances[0].State = &types.InstanceState{Name: types.InstanceStateNameTerminated}

	tests := []struct {
		name   string
		client *fakeEC2
	}{
		{name: "no reservations", client: &fakeEC2{}},
		{name: "api not found", client: &fakeEC2{instancesErr: &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: "gone"}}},
		{name: "terminated", client: &fakeEC2{reservations: []types.Reservation{terminated}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAWSProvider(tt.client, Options{}).Node(context.Background(), "i-0abc")
			if !errors.Is(err, core.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestAWSProvider_Errors(t *testing.T) {
	t.Run("malformed id", func(t *testing.T) {
		client := &fakeEC2{instancesErr: &smithy.GenericAPIError{Code: "InvalidInstanceID.Malformed", Message: "bad"}}
		_, err := NewAWSProvider(client, Options{}).Node(context.Background(), "nope")
		if !errors.Is(err, core.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("other api error", func(t *testing.T) {
		apiErr := &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "denied"}
		_, err := NewAWSProvider(&fakeEC2{instancesErr: apiErr}, Options{}).Node(context.Background(), "i-0abc")
		if err == nil || errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected a propagated error, got %v", err)
		}
		var ae smithy.APIError
		if !errors.As(err, &ae) || ae.ErrorCode() != "UnauthorizedOperation" {
			t.Errorf("expected wrapped API error, got %v", err)
		}
	})

	t.Run("image lookup error", func(t *testing.T) {
		client := &fakeEC2{reservations: []types.Reservation{webInstance()}, imagesErr: errors.New("throttled")}
		_, err := NewAWSProvider(client, Options{}).Node(context.Background(), "i-0abc")
		if err == nil {
			t.Fatalf("expected image lookup error to propagate")
		}
	})
}

func TestAWSProvider_EnrichedFromKeyStore(t *testing.T) {
	client := &fakeEC2{
		reservations: []types.Reservation{webInstance()},
		images:       []types.Image{{ImageId: aws.String("ami-1"), Name: aws.String("al2023-ami-2023.4")}},
	}
	keys := staticKeys{core.OrgTagKey{Org: "123456789012", Tag: "web"}: {PrivateKey: "PK1"}}

	node, ok, err := core.NewEnricher(NewAWSProvider(client, Options{}), keys, nil).
		FetchAndEnrich(context.Background(), "i-0abc")
	if err != nil || !ok {
		t.Fatalf("FetchAndEnrich = (%v, %v, %v)", node, ok, err)
	}
	want := core.Credentials{Account: "ec2-user", Secret: "PK1"}
	if *node.Credentials != want {
		t.Errorf("credentials = %+v, want %+v", node.Credentials, want)
	}
}

// staticKeys is a map-backed core.KeyReader.
type staticKeys map[core.OrgTagKey]core.KeyMaterial

func (s staticKeys) Get(_ context.Context, key core.OrgTagKey) (core.KeyMaterial, bool, error) {
	m, ok := s[key]
	return m, ok, nil
}
