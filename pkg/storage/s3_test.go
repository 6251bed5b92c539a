package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assoc-site/backend/pkg/remote"
)

type fakeUploader struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{}, nil
}

type fakeObjects struct {
	deleted []string
	err     error
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, f.err
}

func testS3(up *fakeUploader, obj *fakeObjects) *S3 {
	s := newS3(obj, up, S3Config{
		Region:  "eu-west-1",
		Buckets: map[string]string{DomainMembers: "assoc-members", DomainMembershipForms: "assoc-forms"},
	}, nil)
	s.now = func() time.Time { return time.UnixMilli(1760000000000) }
	return s
}

func TestUploadFile(t *testing.T) {
	up := &fakeUploader{}
	s := testS3(up, &fakeObjects{})

	ref, err := s.UploadFile(context.Background(), DomainMembers, "profiles", "Dana Haddad", "Photo.JPG", "", strings.NewReader("img"), 3)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^profiles/dana-haddad_1760000000000_[0-9a-f]{8}\.jpg$`), ref.StoragePath)
	assert.Equal(t, "https://assoc-members.s3.eu-west-1.amazonaws.com/"+ref.StoragePath, ref.URL)
	assert.True(t, ref.Uploaded)
	assert.Equal(t, "image/jpeg", ref.Type)
	assert.Equal(t, "Photo.JPG", ref.Name)
	assert.Equal(t, "assoc-members", aws.ToString(up.in.Bucket))
	assert.Equal(t, "img", up.body)
}

func TestUploadFile_Validation(t *testing.T) {
	s := testS3(&fakeUploader{}, &fakeObjects{})
	ctx := context.Background()

	_, err := s.UploadFile(ctx, DomainMembers, "x", "a", "run.exe", "application/x-msdownload", strings.NewReader(""), 1)
	assert.ErrorIs(t, err, ErrFileType)

	_, err = s.UploadFile(ctx, DomainMembers, "x", "a", "cv.pdf", "application/pdf", strings.NewReader(""), MaxFileSize+1)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = s.UploadFile(ctx, DomainCourses, "x", "a", "cv.pdf", "application/pdf", strings.NewReader(""), 1)
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestUploadFile_ClassifiesBucketErrors(t *testing.T) {
	up := &fakeUploader{err: &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "missing"}}
	s := testS3(up, &fakeObjects{})

	_, err := s.UploadFile(context.Background(), DomainMembershipForms, "cv", "dana", "cv.docx", "", strings.NewReader("d"), 1)
	require.Error(t, err)
	assert.Equal(t, remote.CodeBucketNotFound, remote.CodeOf(err))

	var re *remote.Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "assoc-forms", re.Table)

	up.err = &smithy.GenericAPIError{Code: "AccessDenied"}
	_, err = s.UploadFile(context.Background(), DomainMembershipForms, "cv", "dana", "cv.docx", "", strings.NewReader("d"), 1)
	assert.Equal(t, remote.CodeRLSPolicyRequired, remote.CodeOf(err))
}

func TestDeleteObject(t *testing.T) {
	obj := &fakeObjects{}
	s := testS3(&fakeUploader{}, obj)

	require.NoError(t, s.DeleteObject(context.Background(), DomainMembers, "profiles/a.jpg"))
	assert.Equal(t, []string{"assoc-members/profiles/a.jpg"}, obj.deleted)
}

func TestPublicObjectURL_Overrides(t *testing.T) {
	s := newS3(nil, nil, S3Config{Endpoint: "http://minio:9000/"}, nil)
	assert.Equal(t, "http://minio:9000/b/k.png", s.PublicObjectURL("b", "k.png"))

	s = newS3(nil, nil, S3Config{Endpoint: "http://minio:9000", PublicBaseURL: "https://cdn.example.org"}, nil)
	assert.Equal(t, "https://cdn.example.org/b/k.png", s.PublicObjectURL("b", "k.png"))
}

func TestObjectName_EmptyBase(t *testing.T) {
	name := ObjectName("  !! ", "scan.PDF", time.UnixMilli(5))
	assert.True(t, strings.HasPrefix(name, "file_5_"))
	assert.True(t, strings.HasSuffix(name, ".pdf"))
}
