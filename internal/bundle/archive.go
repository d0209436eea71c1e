package bundle

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// writeArchive creates an archive at path in the given format containing
// the named files, flattened to their base names.
func writeArchive(path, format string, files []string) error {
	switch format {
	case "zip":
		return writeZip(path, files)
	case "tar.gz":
		return writeTarGz(path, files)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

// AppendFile adds one file to an existing archive. Neither zip nor tar.gz
// supports true in-place appends, so the archive is rewritten with the
// extra entry.
func AppendFile(archivePath, filePath string) error {
	existing, err := Entries(archivePath)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "bundle-append-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	if err := extract(archivePath, tmpDir); err != nil {
		return fmt.Errorf("failed to unpack %q for append: %w", archivePath, err)
	}

	files := make([]string, 0, len(existing)+1)
	for _, name := range existing {
		files = append(files, filepath.Join(tmpDir, name))
	}
	files = append(files, filePath)

	return writeArchive(archivePath, formatOf(archivePath), files)
}

// Entries lists the entry names inside an archive.
func Entries(archivePath string) ([]string, error) {
	switch formatOf(archivePath) {
	case "zip":
		r, err := zip.OpenReader(archivePath)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		var names []string
		for _, f := range r.File {
			names = append(names, f.Name)
		}
		return names, nil
	case "tar.gz":
		f, err := os.Open(archivePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		tr := tar.NewReader(gz)
		var names []string
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return names, nil
			}
			if err != nil {
				return nil, err
			}
			names = append(names, hdr.Name)
		}
	default:
		return nil, fmt.Errorf("unsupported archive format for %q", archivePath)
	}
}

// formatOf infers the archive format from the file name.
func formatOf(path string) string {
	if strings.HasSuffix(path, ".tar.gz") {
		return "tar.gz"
	}
	if strings.HasSuffix(path, ".zip") {
		return "zip"
	}
	return ""
}

func writeZip(path string, files []string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for _, file := range files {
		in, err := os.Open(file)
		if err != nil {
			w.Close()
			return err
		}
		entry, err := w.Create(filepath.Base(file))
		if err == nil {
			_, err = io.Copy(entry, in)
		}
		in.Close()
		if err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func writeTarGz(path string, files []string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name: filepath.Base(file),
			Mode: 0o755,
			Size: info.Size(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		in, err := os.Open(file)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// extract unpacks every entry of an archive into destDir, flat.
func extract(archivePath, destDir string) error {
	switch formatOf(archivePath) {
	case "zip":
		r, err := zip.OpenReader(archivePath)
		if err != nil {
			return err
		}
		defer r.Close()
		for _, f := range r.File {
			in, err := f.Open()
			if err != nil {
				return err
			}
			err = writeOut(filepath.Join(destDir, filepath.Base(f.Name)), in)
			in.Close()
			if err != nil {
				return err
			}
		}
		return nil
	case "tar.gz":
		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		tr := tar.NewReader(gz)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if err := writeOut(filepath.Join(destDir, filepath.Base(hdr.Name)), tr); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported archive format for %q", archivePath)
	}
}

func writeOut(path string, r io.Reader) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}
