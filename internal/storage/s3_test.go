package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadBucketOutput), args.Error(1)
}

func (m *MockObjectAPI) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.CreateBucketOutput), args.Error(1)
}

func TestS3Client_PutText(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3ClientWithAPI(api, "sources")
	ctx := context.Background()

	api.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.ToString(in.Bucket) == "sources" &&
			aws.ToString(in.Key) == "knowledge/doc-1.txt" &&
			aws.ToInt64(in.ContentLength) == 5 &&
			string(body) == "hello"
	})).Return(&s3.PutObjectOutput{}, nil)

	err := client.PutText(ctx, "knowledge/doc-1.txt", "hello")

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestS3Client_PutText_Error(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3ClientWithAPI(api, "sources")
	ctx := context.Background()

	api.On("PutObject", ctx, mock.Anything).Return(nil, errors.New("access denied"))

	err := client.PutText(ctx, "k", "v")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3Client_GetText(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3ClientWithAPI(api, "sources")
	ctx := context.Background()

	api.On("GetObject", ctx, mock.Anything).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("archived"))}, nil)

	text, err := client.GetText(ctx, "knowledge/doc-1.txt")

	require.NoError(t, err)
	assert.Equal(t, "archived", text)
}

func TestS3Client_GetText_NotFound(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3ClientWithAPI(api, "sources")
	ctx := context.Background()

	api.On("GetObject", ctx, mock.Anything).Return(nil, &types.NoSuchKey{})

	_, err := client.GetText(ctx, "missing")

	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Client_DeleteObject(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3ClientWithAPI(api, "sources")
	ctx := context.Background()

	api.On("DeleteObject", ctx, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "knowledge/doc-1.txt"
	})).Return(&s3.DeleteObjectOutput{}, nil)

	require.NoError(t, client.DeleteObject(ctx, "knowledge/doc-1.txt"))
	api.AssertExpectations(t)
}

func TestS3Client_EnsureBucket_Exists(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3ClientWithAPI(api, "sources")
	ctx := context.Background()

	api.On("HeadBucket", ctx, mock.Anything).Return(&s3.HeadBucketOutput{}, nil)

	require.NoError(t, client.EnsureBucket(ctx))
	api.AssertNotCalled(t, "CreateBucket", mock.Anything, mock.Anything)
}

func TestS3Client_EnsureBucket_Creates(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3ClientWithAPI(api, "sources")
	ctx := context.Background()

	api.On("HeadBucket", ctx, mock.Anything).Return(nil, errors.New("not found"))
	api.On("CreateBucket", ctx, mock.Anything).Return(&s3.CreateBucketOutput{}, nil)

	require.NoError(t, client.EnsureBucket(ctx))
	api.AssertExpectations(t)
}
