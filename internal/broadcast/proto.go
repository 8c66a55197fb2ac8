package broadcast

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
)

// schemaSource is the visualisation wire schema, parsed in-memory via
// protoparse's Accessor rather than read off disk: the engine has no
// on-disk .proto file to load, so an Accessor serving this string stands
// in for the filesystem the parser otherwise expects.
const schemaSource = `
syntax = "proto3";
package driftvis;

message VisualisationUpdate {
  string vis_id = 1;
  string expression_id = 2;
  string value_json = 3;
  bool is_panic = 4;
}

message SubscribeRequest {
  string vis_id = 1;
}
`

const schemaFilename = "driftvis.proto"

// loadSchema parses the embedded schema into file/message descriptors
// using protoparse.Parser's normal entry point, pointed at an in-memory
// accessor instead of the filesystem.
func loadSchema() (*desc.FileDescriptor, error) {
	parser := protoparse.Parser{
		Accessor: func(filename string) (io.ReadCloser, error) {
			if filename != schemaFilename {
				return nil, fmt.Errorf("broadcast: unknown schema file %q", filename)
			}
			return io.NopCloser(bytes.NewReader([]byte(schemaSource))), nil
		},
	}
	fds, err := parser.ParseFiles(schemaFilename)
	if err != nil {
		return nil, fmt.Errorf("broadcast: parse schema: %w", err)
	}
	if len(fds) != 1 {
		return nil, fmt.Errorf("broadcast: expected exactly one file descriptor, got %d", len(fds))
	}
	return fds[0], nil
}

func findMessage(fd *desc.FileDescriptor, name string) (*desc.MessageDescriptor, error) {
	md := fd.FindMessage("driftvis." + name)
	if md == nil {
		return nil, fmt.Errorf("broadcast: message %q not found in schema", name)
	}
	return md, nil
}
