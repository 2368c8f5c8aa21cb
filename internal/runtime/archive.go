package runtime

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
)

// Streams the OCI image layout at dir as an uncompressed tar archive.
//
// Entries are rooted at the layout directory itself, so index.json and
// oci-layout appear at the top of the archive as containerd expects.
func writeLayoutTar(w io.Writer, dir string) error {
	tw := tar.NewWriter(w)
	if err := writeDirToTar(tw, dir); err != nil {
		return err
	}
	return tw.Close()
}

// Writes a directory tree to a tar writer, skipping the root entry.
func writeDirToTar(tw *tar.Writer, hostDir string) error {
	return filepath.WalkDir(hostDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		return writeTarEntry(tw, path, filepath.ToSlash(relPath), d)
	})
}

// Writes a single file or directory entry to a tar writer. Other file types
// never occur in an OCI layout and are skipped.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = archivePath
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}
