// blobctl stores, reads and removes claim documents in the blob store from
// the command line.
//
//	blobctl put --claim MH-2025-ab12 --user u-1 denial.pdf notes.pdf
//	blobctl get 65f0c0ffee0000000000beef -o denial.pdf
//	blobctl ls --claim MH-2025-ab12
//	blobctl rm 65f0c0ffee0000000000beef
//	blobctl check
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"claims-intake-platform/internal/blobstore"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/internal/config"
	"claims-intake-platform/models"
	"claims-intake-platform/services"

	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usage = `usage: blobctl <command> [flags] [args]

commands:
  put    store files, attaching them to --claim when given
  get    write a blob's content to --out or stdout
  ls     list blobs of --claim or --user
  rm     delete blobs by id
  check  report chunk groups without a files document
`

// toolset is what the commands operate on
type toolset struct {
	chunks blobstore.ChunkRepository
	files  blobstore.FileRepository
	store  *blobstore.ChunkStore
	intake *services.IntakeService
	close  func()
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, openMongo); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openMongo(ctx context.Context) (*toolset, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	db := client.Database(cfg.DBName)

	chunks := blobstore.NewMongoChunkRepository(db.Collection(config.BlobChunksCollection))
	files := blobstore.NewMongoFileRepository(db.Collection(config.BlobFilesCollection))
	claimRepo := claims.NewMongoRepository(db.Collection(config.ClaimsCollection), nil)

	ts := newToolset(chunks, files, claimRepo, cfg.BlobChunkSize, cfg.MaxFileSize)
	ts.close = func() { _ = client.Disconnect(context.Background()) }
	return ts, nil
}

func newToolset(chunks blobstore.ChunkRepository, files blobstore.FileRepository, claimRepo claims.Repository, chunkSize int, maxFileSize int64) *toolset {
	store := blobstore.NewChunkStore(chunks, files, blobstore.Options{ChunkSize: chunkSize})
	return &toolset{
		chunks: chunks,
		files:  files,
		store:  store,
		intake: services.NewIntakeService(store, blobstore.NewIndex(files), claims.NewLinkage(claimRepo), maxFileSize),
		close:  func() {},
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, open func(context.Context) (*toolset, error)) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stdout, usage)
		return nil
	}
	command, args := args[0], args[1:]

	flagSet := pflag.NewFlagSet("blobctl "+command, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	claimRef := flagSet.StringP("claim", "c", "", "claim id, reference or object id")
	userRef := flagSet.StringP("user", "u", "", "uploader reference")
	out := flagSet.StringP("out", "o", "", "output file for get (default stdout)")
	asJSON := flagSet.Bool("json", false, "print results as JSON")
	if err := flagSet.Parse(args); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}
	args = flagSet.Args()

	tools, err := open(ctx)
	if err != nil {
		return err
	}
	defer tools.close()

	switch command {
	case "put":
		return putFiles(ctx, tools, *claimRef, *userRef, args, stdout, *asJSON)
	case "get":
		if len(args) != 1 {
			return errors.New("get takes exactly one blob id")
		}
		return getFile(ctx, tools, args[0], *out, stdout)
	case "ls":
		return listFiles(ctx, tools, *claimRef, *userRef, stdout, *asJSON)
	case "rm":
		if len(args) == 0 {
			return errors.New("rm needs at least one blob id")
		}
		return removeFiles(ctx, tools, args, stdout)
	case "check":
		report, err := blobstore.CheckIntegrity(ctx, tools.chunks, tools.files)
		if err != nil {
			return err
		}
		return printJSON(stdout, report)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func putFiles(ctx context.Context, tools *toolset, claimRef, userRef string, paths []string, stdout io.Writer, asJSON bool) error {
	if len(paths) == 0 {
		return errors.New("put needs at least one file")
	}

	if claimRef == "" {
		for _, path := range paths {
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			id, err := tools.store.Store(ctx, content, blobstore.UploadMetadata{
				Filename:    filepath.Base(path),
				ContentType: contentTypeOf(path),
				UserID:      userRef,
			})
			if err != nil {
				return fmt.Errorf("store %s: %w", path, err)
			}
			fmt.Fprintf(stdout, "%s\t%s\n", id, path)
		}
		return nil
	}

	uploads := make([]services.FileUpload, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		path := path
		uploads = append(uploads, services.FileUpload{
			Filename:    filepath.Base(path),
			ContentType: contentTypeOf(path),
			Size:        info.Size(),
			Open:        func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}

	report, err := tools.intake.UploadFiles(ctx, claimRef, userRef, uploads)
	if report != nil {
		if asJSON {
			_ = printJSON(stdout, report)
		} else {
			for _, r := range report.Results {
				if r.Error != "" {
					fmt.Fprintf(stdout, "FAILED\t%s\t%s\n", r.Filename, r.Error)
					continue
				}
				fmt.Fprintf(stdout, "%s\t%s\n", r.FileID, r.Filename)
			}
		}
	}
	return err
}

func getFile(ctx context.Context, tools *toolset, id, out string, stdout io.Writer) error {
	blob, err := tools.store.Retrieve(ctx, id)
	if err != nil {
		return err
	}
	if out == "" {
		_, err = stdout.Write(blob.Content)
		return err
	}
	return os.WriteFile(out, blob.Content, 0o644)
}

func listFiles(ctx context.Context, tools *toolset, claimRef, userRef string, stdout io.Writer, asJSON bool) error {
	var files []models.FileInfo
	var err error
	switch {
	case claimRef != "":
		files, err = tools.intake.ListClaimFiles(ctx, claimRef)
	case userRef != "":
		files, err = tools.intake.ListUserFiles(ctx, userRef)
	default:
		return errors.New("ls needs --claim or --user")
	}
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(stdout, models.FileListResponse{Files: files, Total: len(files)})
	}
	for _, f := range files {
		fmt.Fprintf(stdout, "%s\t%d\t%s\t%s\n", f.FileID, f.Length, f.UploadedAt.Format(time.RFC3339), f.Filename)
	}
	return nil
}

func removeFiles(ctx context.Context, tools *toolset, ids []string, stdout io.Writer) error {
	missing := 0
	for _, id := range ids {
		deleted, err := tools.intake.DeleteFile(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			missing++
			fmt.Fprintf(stdout, "not found\t%s\n", id)
			continue
		}
		fmt.Fprintf(stdout, "deleted\t%s\n", id)
	}
	if missing > 0 {
		return fmt.Errorf("%d blob(s) not found", missing)
	}
	return nil
}

func contentTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return models.DefaultContentType
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
