/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: extract.go
Description: Container text-section extraction for the Akaylee ArchRec engine.
Best-effort collaborator around the statistical core: when the input is an
ELF, PE, or Mach-O (thin or FAT) image, it locates the executable text so the
engine can additionally be run on code bytes alone. Unknown or malformed
containers simply yield nothing; the core never depends on this succeeding.
*/

package container

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"strings"
)

// Section is a located text region, expressed in whole-file offsets.
type Section struct {
	Offset int
	Length int
	Name   string // container's own name for the region
}

var (
	elfMagic    = []byte{0x7f, 'E', 'L', 'F'}
	peMagic     = []byte{'M', 'Z'}
	machoMagics = [][]byte{
		{0xfe, 0xed, 0xfa, 0xce}, {0xce, 0xfa, 0xed, 0xfe},
		{0xfe, 0xed, 0xfa, 0xcf}, {0xcf, 0xfa, 0xed, 0xfe},
		{0xca, 0xfe, 0xba, 0xbe}, {0xbe, 0xba, 0xfe, 0xca},
	}
)

// TextSections locates the executable text regions of a known container.
// Returns nil when the data is not a recognized container or carries no
// usable text section.
func TextSections(data []byte) []Section {
	switch {
	case bytes.HasPrefix(data, elfMagic):
		return elfText(data)
	case bytes.HasPrefix(data, peMagic):
		return peText(data)
	case isMacho(data):
		return machoText(data)
	}
	return nil
}

// ExtractText concatenates the text regions found by TextSections.
// The second result is false when no container text was found, in which
// case callers analyze the whole file.
func ExtractText(data []byte) ([]byte, bool) {
	sections := TextSections(data)
	if len(sections) == 0 {
		return nil, false
	}
	var text []byte
	for _, s := range sections {
		if s.Offset < 0 || s.Length <= 0 || s.Offset+s.Length > len(data) {
			continue
		}
		text = append(text, data[s.Offset:s.Offset+s.Length]...)
	}
	if len(text) == 0 {
		return nil, false
	}
	return text, true
}

func elfText(data []byte) []Section {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	defer f.Close()

	var sections []Section
	for _, sh := range f.Sections {
		if !strings.HasPrefix(sh.Name, ".text") || sh.Type == elf.SHT_NOBITS {
			continue
		}
		sections = append(sections, Section{
			Offset: int(sh.Offset),
			Length: int(sh.FileSize),
			Name:   sh.Name,
		})
	}
	return sections
}

func peText(data []byte) []Section {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	defer f.Close()

	var sections []Section
	for _, sh := range f.Sections {
		if strings.TrimRight(sh.Name, "\x00") != ".text" {
			continue
		}
		size := sh.Size
		if sh.VirtualSize > 0 && sh.VirtualSize < size {
			size = sh.VirtualSize
		}
		sections = append(sections, Section{
			Offset: int(sh.Offset),
			Length: int(size),
			Name:   ".text",
		})
	}
	return sections
}

func isMacho(data []byte) bool {
	for _, magic := range machoMagics {
		if bytes.HasPrefix(data, magic) {
			return true
		}
	}
	return false
}

func machoText(data []byte) []Section {
	if fat, err := macho.NewFatFile(bytes.NewReader(data)); err == nil {
		defer fat.Close()
		var sections []Section
		for _, arch := range fat.Arches {
			for _, s := range thinText(arch.File) {
				// Section offsets inside a FAT slice are relative to
				// the slice, not the file.
				s.Offset += int(arch.Offset)
				s.Name = arch.Cpu.String() + " " + s.Name
				sections = append(sections, s)
			}
		}
		return sections
	}

	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	defer f.Close()
	return thinText(f)
}

func thinText(f *macho.File) []Section {
	var sections []Section
	for _, s := range f.Sections {
		if s.Seg != "__TEXT" || s.Name != "__text" {
			continue
		}
		sections = append(sections, Section{
			Offset: int(s.Offset),
			Length: int(s.Size),
			Name:   s.Seg + "," + s.Name,
		})
	}
	return sections
}
