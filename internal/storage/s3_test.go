package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjects struct {
	mock.Mock
}

func (m *mockObjects) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *mockObjects) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

type mockPresigner struct {
	mock.Mock
}

func (m *mockPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	args := m.Called(ctx, params)
	if req, ok := args.Get(0).(*v4.PresignedHTTPRequest); ok {
		return req, args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestStorage() (*EvidenceStorage, *mockObjects, *mockPresigner) {
	objects := new(mockObjects)
	presigner := new(mockPresigner)

	return &EvidenceStorage{
		objects:   objects,
		presigner: presigner,
		bucket:    "evidence",
		prefix:    "cases",
		ttl:       5 * time.Minute,
	}, objects, presigner
}

func TestKey(t *testing.T) {
	s, _, _ := newTestStorage()

	assert.Equal(t, "cases/c1/a1.pdf", s.Key("c1", "a1", "Receipt.PDF"))
	assert.Equal(t, "cases/c1/a2", s.Key("c1", "a2", "noext"))
}

func TestUpload(t *testing.T) {
	s, objects, _ := newTestStorage()
	ctx := context.Background()

	objects.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "evidence" &&
			aws.ToString(in.Key) == "cases/c1/a1.pdf" &&
			aws.ToString(in.ContentType) == "application/pdf" &&
			aws.ToInt64(in.ContentLength) == 4
	})).Return(nil).Once()

	err := s.Upload(ctx, "cases/c1/a1.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	objects.AssertExpectations(t)
}

func TestUpload_Error(t *testing.T) {
	s, objects, _ := newTestStorage()
	ctx := context.Background()

	objects.On("PutObject", ctx, mock.Anything).Return(errors.New("access denied"))

	err := s.Upload(ctx, "cases/c1/a1.pdf", strings.NewReader("x"), 1, "application/pdf")
	assert.ErrorContains(t, err, "access denied")
}

func TestDelete(t *testing.T) {
	s, objects, _ := newTestStorage()
	ctx := context.Background()

	objects.On("DeleteObject", ctx, &s3.DeleteObjectInput{
		Bucket: aws.String("evidence"),
		Key:    aws.String("cases/c1/a1.pdf"),
	}).Return(nil).Once()

	require.NoError(t, s.Delete(ctx, "cases/c1/a1.pdf"))
	require.NoError(t, s.Delete(ctx, "  "))

	objects.AssertExpectations(t)
	objects.AssertNumberOfCalls(t, "DeleteObject", 1)
}

func TestPresignGet(t *testing.T) {
	s, _, presigner := newTestStorage()
	ctx := context.Background()

	presigner.On("PresignGetObject", ctx, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "cases/c1/a1.pdf" &&
			aws.ToString(in.ResponseContentDisposition) == `attachment; filename="receipt.pdf"`
	})).Return(&v4.PresignedHTTPRequest{URL: "https://evidence.s3.amazonaws.com/cases/c1/a1.pdf?X-Amz-Signature=abc"}, nil)

	url, expires, err := s.PresignGet(ctx, "cases/c1/a1.pdf", "receipt.pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Signature")
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expires, time.Minute)
}
