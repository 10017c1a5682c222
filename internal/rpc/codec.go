package rpc

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/populate"
)

// encodeRequest fills a CompileRequest message from req.
func encodeRequest(md protoreflect.MessageDescriptor, req compiler.Request) *dynamicpb.Message {
	msg := dynamicpb.NewMessage(md)
	fields := md.Fields()

	setStrings(msg, fields.ByName(fieldPopulate), req.Populate)
	setStrings(msg, fields.ByName(fieldSelectableFields), req.SelectableFields)

	if len(req.Sort) > 0 {
		fd := fields.ByName(fieldSort)
		list := msg.Mutable(fd).List()
		for _, s := range req.Sort {
			elem := list.NewElement()
			m := elem.Message()
			setString(m, fd.Message().Fields().ByName(fieldSortField), s.Field)
			setString(m, fd.Message().Fields().ByName(fieldSortDirection), s.Direction)
			list.Append(elem)
		}
	}

	setString(msg, fields.ByName(fieldIncludeKey), req.IncludeKey)
	setString(msg, fields.ByName(fieldSelectKey), req.SelectKey)
	setString(msg, fields.ByName(fieldSortKey), req.SortKey)
	setString(msg, fields.ByName(fieldEmptyRoot), req.EmptyRootFieldsBehavior)
	return msg
}

// decodeRequest reads a CompileRequest message.
func decodeRequest(msg protoreflect.Message) compiler.Request {
	fields := msg.Descriptor().Fields()
	req := compiler.Request{
		Populate:                getStrings(msg, fields.ByName(fieldPopulate)),
		SelectableFields:        getStrings(msg, fields.ByName(fieldSelectableFields)),
		IncludeKey:              msg.Get(fields.ByName(fieldIncludeKey)).String(),
		SelectKey:               msg.Get(fields.ByName(fieldSelectKey)).String(),
		SortKey:                 msg.Get(fields.ByName(fieldSortKey)).String(),
		EmptyRootFieldsBehavior: msg.Get(fields.ByName(fieldEmptyRoot)).String(),
	}
	sortFD := fields.ByName(fieldSort)
	list := msg.Get(sortFD).List()
	for i := 0; i < list.Len(); i++ {
		m := list.Get(i).Message()
		sf := m.Descriptor().Fields()
		req.Sort = append(req.Sort, populate.SortRequest{
			Field:     m.Get(sf.ByName(fieldSortField)).String(),
			Direction: m.Get(sf.ByName(fieldSortDirection)).String(),
		})
	}
	return req
}

func setString(msg protoreflect.Message, fd protoreflect.FieldDescriptor, v string) {
	if v != "" {
		msg.Set(fd, protoreflect.ValueOfString(v))
	}
}

func setStrings(msg protoreflect.Message, fd protoreflect.FieldDescriptor, vs []string) {
	if len(vs) == 0 {
		return
	}
	list := msg.Mutable(fd).List()
	for _, v := range vs {
		list.Append(protoreflect.ValueOfString(v))
	}
}

func getStrings(msg protoreflect.Message, fd protoreflect.FieldDescriptor) []string {
	list := msg.Get(fd).List()
	out := make([]string, list.Len())
	for i := range out {
		out[i] = list.Get(i).String()
	}
	return out
}
