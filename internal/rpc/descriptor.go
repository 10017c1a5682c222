// Package rpc exposes the compiler over gRPC. The service descriptor is
// built at runtime and messages are handled with dynamicpb, so no generated
// code is involved.
package rpc

import (
	"fmt"
	"io"
	"sync"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"github.com/jhump/protoreflect/v2/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	FilePath    = "populate/v1/compiler.proto"
	Package     = "populate.v1"
	ServiceName = Package + ".Compiler"
	MethodName  = "Compile"

	// FullMethod is the gRPC method path of Compile.
	FullMethod = "/" + ServiceName + "/" + MethodName
)

// CompileRequest field names.
const (
	fieldPopulate         = "populate"
	fieldSelectableFields = "selectable_fields"
	fieldSort             = "sort"
	fieldIncludeKey       = "include_key"
	fieldSelectKey        = "select_key"
	fieldSortKey          = "sort_key"
	fieldEmptyRoot        = "empty_root_fields_behavior"

	fieldSortField     = "field"
	fieldSortDirection = "direction"
)

// Descriptor returns the file descriptor of the Compiler service.
func Descriptor() (protoreflect.FileDescriptor, error) {
	return buildDescriptor()
}

var buildDescriptor = sync.OnceValues(func() (protoreflect.FileDescriptor, error) {
	fb := protobuilder.NewFile(FilePath)
	fb.SetPackageName(Package)
	fb.SetSyntax(protoreflect.Proto3)

	sortMB := protobuilder.NewMessage("SortRequest")
	sortMB.SetComments(comment("Ordering on a root field or a dotted relation field."))
	sortMB.AddField(stringField(fieldSortField, 1, false))
	sortMB.AddField(stringField(fieldSortDirection, 2, false).
		SetComments(comment(`"asc" or "desc". Anything else is ascending.`)))

	reqMB := protobuilder.NewMessage("CompileRequest")
	reqMB.AddField(stringField(fieldPopulate, 1, true).
		SetComments(comment("Dotted populate paths. Unknown paths are dropped.")))
	reqMB.AddField(stringField(fieldSelectableFields, 2, true))
	reqMB.AddField(protobuilder.NewField(fieldSort, protobuilder.FieldTypeMessage(sortMB)).
		SetNumber(3).SetRepeated())
	reqMB.AddField(stringField(fieldIncludeKey, 4, false))
	reqMB.AddField(stringField(fieldSelectKey, 5, false))
	reqMB.AddField(stringField(fieldSortKey, 6, false))
	reqMB.AddField(stringField(fieldEmptyRoot, 7, false).
		SetComments(comment(`"returnAll" or "leaveEmpty".`)))

	method := protobuilder.NewMethod(MethodName,
		protobuilder.RpcTypeMessage(reqMB, false),
		protobuilder.RpcTypeImportedMessage((&structpb.Struct{}).ProtoReflect().Descriptor(), false),
	)
	method.SetComments(comment("Compile turns populate paths into a structured query."))

	svc := protobuilder.NewService("Compiler")
	svc.AddMethod(method)

	fb.AddMessage(sortMB)
	fb.AddMessage(reqMB)
	fb.AddService(svc)

	fd, err := fb.Build()
	if err != nil {
		return nil, fmt.Errorf("rpc: build descriptor: %w", err)
	}
	return fd, nil
})

func stringField(name protoreflect.Name, number protoreflect.FieldNumber, repeated bool) *protobuilder.FieldBuilder {
	f := protobuilder.NewField(name, protobuilder.FieldTypeScalar(protoreflect.StringKind)).SetNumber(number)
	if repeated {
		f.SetRepeated()
	}
	return f
}

func comment(s string) protobuilder.Comments {
	return protobuilder.Comments{LeadingComment: " " + s + "\n"}
}

// compileMethod looks up the Compile method descriptor.
func compileMethod() (protoreflect.MethodDescriptor, error) {
	fd, err := Descriptor()
	if err != nil {
		return nil, err
	}
	md := fd.Services().ByName("Compiler").Methods().ByName(MethodName)
	if md == nil {
		return nil, fmt.Errorf("rpc: method %s not found", FullMethod)
	}
	return md, nil
}

// Render prints the service definition as a .proto file.
func Render(w io.Writer) error {
	fd, err := Descriptor()
	if err != nil {
		return err
	}
	p := protoprint.Printer{}
	return p.PrintProtoFile(fd, w)
}
