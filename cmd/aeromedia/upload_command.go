package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aeromedia/internal/config"
	"aeromedia/internal/logging"
	"aeromedia/internal/notifications"
	"aeromedia/internal/objectstore"
	"aeromedia/internal/store"
	"aeromedia/internal/textutil"
	"aeromedia/internal/uploader"
)

func newUploadCommand(cmdCtx *commandContext) *cobra.Command {
	var fileType string

	cmd := &cobra.Command{
		Use:   "upload <access-code> <file>...",
		Short: "Upload media files into a package",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("initialize logging: %w", err)
				}

				code := strings.TrimSpace(args[0])
				pkg, err := st.GetPackageByAccessCode(cmd.Context(), code)
				if err != nil {
					return err
				}
				if pkg == nil {
					return fmt.Errorf("no package with access code %q", code)
				}

				storage, err := objectstore.New(cfg)
				if err != nil {
					return fmt.Errorf("initialize storage client: %w", err)
				}
				coord := uploader.New(storage, logger, uploader.WithMaxAttempts(cfg.Storage.UploadRetries))
				defer coord.AbortAll()
				notifier := notifications.NewService(cfg)

				out := cmd.OutOrStdout()
				for _, filePath := range args[1:] {
					info, err := os.Stat(filePath)
					if err != nil {
						return fmt.Errorf("stat %s: %w", filePath, err)
					}

					fileName := textutil.SanitizeFileName(filepath.Base(filePath))
					objectPath := path.Join(pkg.ID, fileName)

					var lastPercent int64 = -1
					result, err := coord.Upload(cmd.Context(), cfg.Storage.MediaBucket, objectPath, filePath, uploader.Options{
						OnProgress: func(p uploader.Progress) {
							if p.TotalBytes == 0 {
								return
							}
							percent := p.BytesSent * 100 / p.TotalBytes
							if percent != lastPercent {
								lastPercent = percent
								fmt.Fprintf(out, "\r%s: %d%%", fileName, percent)
							}
						},
					})
					if err != nil {
						fmt.Fprintln(out)
						return fmt.Errorf("upload %s: %w", fileName, err)
					}
					fmt.Fprintf(out, "\r%s: uploaded %s\n", fileName, humanize.IBytes(uint64(result.Size)))

					kind := store.FileType(fileType)
					if fileType == "" {
						kind = inferFileType(result.ContentType)
					}
					if !kind.Valid() {
						return fmt.Errorf("cannot determine media kind for %s (use --type)", fileName)
					}

					// Watermarked previews are rendered out of band under
					// the preview prefix, mirroring the object path.
					if _, err := st.AddItem(cmd.Context(), store.NewItemParams{
						PackageID:   pkg.ID,
						Bucket:      result.Bucket,
						ObjectPath:  result.ObjectPath,
						PreviewPath: path.Join(cfg.Storage.PreviewPrefix, pkg.ID, fileName),
						FileType:    kind,
						FileName:    fileName,
						FileSize:    info.Size(),
					}); err != nil {
						return fmt.Errorf("register %s: %w", fileName, err)
					}

					if err := notifier.NotifyUploadCompleted(cmd.Context(), result.ObjectPath, result.Size); err != nil {
						logger.Warn("upload notification failed", logging.Error(err))
					}
				}

				fmt.Fprintf(out, "Uploaded %d file(s) to package %s\n", len(args)-1, pkg.AccessCode)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fileType, "type", "", "Media kind (photo, video, reel, drone); inferred from content when omitted")
	return cmd
}

// inferFileType maps a sniffed MIME type onto a catalog media kind. Reel and
// drone footage cannot be told apart from regular video by content alone, so
// those require the --type flag.
func inferFileType(contentType string) store.FileType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return store.FileTypePhoto
	case strings.HasPrefix(contentType, "video/"):
		return store.FileTypeVideo
	default:
		return ""
	}
}
