package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"omibyte.io/halos/ioreg"
)

var (
	input     string
	outputDir string
)

func init() {
	flag.StringVar(&input, "in", "", "input register map (glob)")
	flag.StringVar(&outputDir, "out", "", "output directory")
	flag.Parse()
}

func main() {
	fnames, err := filepath.Glob(input)
	if err != nil {
		log.Fatal(err)
	}
	if len(fnames) == 0 {
		log.Fatalf("no register maps match %q", input)
	}

	for _, fname := range fnames {
		m, err := ioreg.ParseFile(fname)
		if err != nil {
			log.Fatal(err)
		}

		// Each map becomes one file in the directory of its package
		dir := filepath.Join(outputDir, m.Package)
		if err = os.MkdirAll(dir, 0750); err != nil {
			log.Fatal("file io error: ", err)
		}

		base := strings.TrimSuffix(filepath.Base(fname), filepath.Ext(fname))
		out := filepath.Join(dir, strings.ToLower(base)+".go")
		f, err := os.Create(out)
		if err != nil {
			log.Fatal("file io error: ", err)
		}
		if err = m.Generate(f, out); err != nil {
			f.Close()
			log.Fatal("generator error: ", err)
		}
		if err = f.Close(); err != nil {
			log.Fatal("file io error: ", err)
		}

		fmt.Printf("%s: %d groups -> %s\n", fname, len(m.Groups), out)
	}
	fmt.Println("Done.")
}
