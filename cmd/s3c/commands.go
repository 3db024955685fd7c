package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/relvacode/s3c"
)

// splitBucketKey splits a bucket/key positional argument at the first slash.
func splitBucketKey(arg string) (bucket, key string) {
	bucket, key, _ = strings.Cut(arg, "/")
	return
}

type lsCommand struct {
	app *app

	Positional struct {
		Path string `positional-arg-name:"bucket[/prefix]" description:"List this bucket, optionally below a key prefix"`
	} `positional-args:"true"`
}

func (cmd *lsCommand) Execute([]string) error {
	client, err := cmd.app.client()
	if err != nil {
		return err
	}

	if cmd.Positional.Path == "" {
		buckets, err := client.ListBuckets(cmd.app.ctx)
		if err != nil {
			return err
		}

		for _, bucket := range buckets {
			fmt.Printf("%s %s\n", bucket.CreationDate.UTC().Format(time.DateTime), bucket.Name)
		}

		return nil
	}

	bucket, prefix := splitBucketKey(cmd.Positional.Path)

	opts := &s3c.ListObjectsV2Options{
		Prefix:    prefix,
		Delimiter: "/",
	}

	for {
		page, err := client.ListObjectsV2(cmd.app.ctx, bucket, opts)
		if err != nil {
			return err
		}

		for _, pre := range page.CommonPrefixes {
			fmt.Printf("%32s %s\n", "PRE", pre.Prefix)
		}
		for _, obj := range page.Contents {
			fmt.Printf("%s %12d %s\n", obj.LastModified.UTC().Format(time.DateTime), obj.Size, obj.Key)
		}

		if !page.IsTruncated {
			return nil
		}
		opts.ContinuationToken = page.NextContinuationToken
	}
}

type mbCommand struct {
	app *app

	Positional struct {
		Bucket string `positional-arg-name:"bucket" required:"true" description:"Name of the bucket to create"`
	} `positional-args:"true"`
}

func (cmd *mbCommand) Execute([]string) error {
	client, err := cmd.app.client()
	if err != nil {
		return err
	}

	if err := client.CreateBucket(cmd.app.ctx, cmd.Positional.Bucket); err != nil {
		return err
	}

	fmt.Println("created", cmd.Positional.Bucket)
	return nil
}

type rbCommand struct {
	app *app

	Positional struct {
		Bucket string `positional-arg-name:"bucket" required:"true" description:"Name of the bucket to remove"`
	} `positional-args:"true"`
}

func (cmd *rbCommand) Execute([]string) error {
	client, err := cmd.app.client()
	if err != nil {
		return err
	}

	if err := client.DeleteBucket(cmd.app.ctx, cmd.Positional.Bucket); err != nil {
		return err
	}

	fmt.Println("removed", cmd.Positional.Bucket)
	return nil
}

type putCommand struct {
	app *app

	ContentType string `long:"content-type" description:"Content type of the uploaded object. Detected from the payload if not provided"`
	Checksum    string `long:"checksum" choice:"crc32" choice:"crc32c" choice:"crc64nvme" choice:"sha256" description:"Upload an additional content checksum"`

	Positional struct {
		File        string `positional-arg-name:"file" required:"true" description:"Local file to upload"`
		Destination string `positional-arg-name:"bucket[/key]" required:"true" description:"Destination bucket and key. The key defaults to the file name"`
	} `positional-args:"true"`
}

func (cmd *putCommand) Execute([]string) error {
	body, err := os.ReadFile(cmd.Positional.File)
	if err != nil {
		return err
	}

	bucket, key := splitBucketKey(cmd.Positional.Destination)
	if key == "" {
		key = filepath.Base(cmd.Positional.File)
	}

	client, err := cmd.app.client()
	if err != nil {
		return err
	}

	etag, err := client.PutObject(cmd.app.ctx, bucket, key, body, &s3c.PutObjectOptions{
		ContentType: cmd.ContentType,
		Checksum:    s3c.ChecksumAlgorithm(strings.ToUpper(cmd.Checksum)),
	})
	if err != nil {
		return err
	}

	fmt.Printf("uploaded %s/%s etag=%s\n", bucket, key, etag)
	return nil
}

type getCommand struct {
	app *app

	Positional struct {
		Source string `positional-arg-name:"bucket/key" required:"true" description:"Object to download"`
		File   string `positional-arg-name:"file" description:"Local file to write to. Defaults to standard output"`
	} `positional-args:"true"`
}

func (cmd *getCommand) Execute([]string) error {
	bucket, key := splitBucketKey(cmd.Positional.Source)
	if key == "" {
		return errors.New("expected an object path of the form bucket/key")
	}

	client, err := cmd.app.client()
	if err != nil {
		return err
	}

	obj, err := client.GetObject(cmd.app.ctx, bucket, key, nil)
	if err != nil {
		return err
	}

	if cmd.Positional.File == "" || cmd.Positional.File == "-" {
		_, err = os.Stdout.Write(obj.Body)
		return err
	}

	return os.WriteFile(cmd.Positional.File, obj.Body, 0644)
}

type rmCommand struct {
	app *app

	Positional struct {
		Paths []string `positional-arg-name:"bucket/key" required:"1" description:"Objects to remove"`
	} `positional-args:"true"`
}

func (cmd *rmCommand) Execute([]string) error {
	// Group the requested keys by bucket so each bucket takes one batch call
	var (
		order   []string
		grouped = make(map[string][]string)
	)
	for _, path := range cmd.Positional.Paths {
		bucket, key := splitBucketKey(path)
		if key == "" {
			return fmt.Errorf("%s: expected an object path of the form bucket/key", path)
		}
		if _, ok := grouped[bucket]; !ok {
			order = append(order, bucket)
		}
		grouped[bucket] = append(grouped[bucket], key)
	}

	client, err := cmd.app.client()
	if err != nil {
		return err
	}

	var failed int
	for _, bucket := range order {
		result, err := client.DeleteObjects(cmd.app.ctx, bucket, grouped[bucket])
		if err != nil {
			return err
		}

		for _, deleted := range result.Deleted {
			fmt.Printf("removed %s/%s\n", bucket, deleted.Key)
		}
		for _, failure := range result.Errors {
			failed++
			fmt.Fprintf(os.Stderr, "failed %s/%s: %s: %s\n", bucket, failure.Key, failure.Code, failure.Message)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d objects could not be removed", failed)
	}

	return nil
}

const statBucketTemplate = `Bucket         {{ .Bucket }}
Region         {{ .Region }}
`

const statObjectTemplate = `Key            {{ .Path }}
Size           {{ .Size }}
Content-Type   {{ .ContentType }}
ETag           {{ .ETag }}
Last-Modified  {{ .LastModified }}
{{- range $name, $value := .Metadata }}
Metadata       {{ $name }}={{ $value }}
{{- end }}
`

type statCommand struct {
	app *app

	Positional struct {
		Path string `positional-arg-name:"bucket[/key]" required:"true" description:"Bucket or object to describe"`
	} `positional-args:"true"`
}

func (cmd *statCommand) Execute([]string) error {
	bucket, key := splitBucketKey(cmd.Positional.Path)

	client, err := cmd.app.client()
	if err != nil {
		return err
	}

	if key == "" {
		if err := client.HeadBucket(cmd.app.ctx, bucket); err != nil {
			return err
		}
		region, err := client.GetBucketLocation(cmd.app.ctx, bucket)
		if err != nil {
			return err
		}

		t := template.Must(template.New("bucket").Parse(statBucketTemplate))
		return t.Execute(os.Stdout, map[string]interface{}{
			"Bucket": bucket,
			"Region": region,
		})
	}

	obj, err := client.HeadObject(cmd.app.ctx, bucket, key)
	if err != nil {
		return err
	}

	t := template.Must(template.New("object").Parse(statObjectTemplate))
	return t.Execute(os.Stdout, map[string]interface{}{
		"Path":         bucket + "/" + key,
		"Size":         obj.Size,
		"ContentType":  obj.ContentType,
		"ETag":         obj.ETag,
		"LastModified": obj.LastModified.UTC().Format(time.RFC1123),
		"Metadata":     obj.Metadata,
	})
}

type presignCommand struct {
	app *app

	Method  string        `short:"X" long:"method" choice:"GET" choice:"PUT" default:"GET" description:"HTTP method the URL will be used with"`
	Expires time.Duration `long:"expires" default:"15m" description:"How long the URL stays valid, between 1s and 168h"`

	Positional struct {
		Path string `positional-arg-name:"bucket/key" required:"true" description:"Object the URL addresses"`
	} `positional-args:"true"`
}

func (cmd *presignCommand) Execute([]string) error {
	bucket, key := splitBucketKey(cmd.Positional.Path)
	if key == "" {
		return errors.New("expected an object path of the form bucket/key")
	}

	client, err := cmd.app.client()
	if err != nil {
		return err
	}

	var presigned string
	switch cmd.Method {
	case http.MethodPut:
		presigned, err = client.PresignPutObject(bucket, key, cmd.Expires)
	default:
		presigned, err = client.PresignGetObject(bucket, key, cmd.Expires)
	}
	if err != nil {
		return err
	}

	fmt.Println(presigned)
	return nil
}
