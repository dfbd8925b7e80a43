// Package s3 implements the accounts media uploader on aws-sdk-go-v2,
// compatible with AWS S3 and MinIO-style endpoints.
package s3
