package session

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dzyphr/solana-playground/internal/bridge"
)

// Backend is the engine-side implementation of the operation set. Every
// wire method maps to exactly one Backend method.
type Backend interface {
	LoadFiles(ctx context.Context, files []File) error
	LoadCrate(ctx context.Context, name, source, manifest string) ([]string, error)
	RegisterEmptyCrate(ctx context.Context, name string) error
	Diagnostics(ctx context.Context, path, content string) ([]Diagnostic, error)
	Hover(ctx context.Context, path string, pos Position) (Hover, error)
	Completion(ctx context.Context, path string, pos Position) ([]CompletionItem, error)
	Definition(ctx context.Context, path string, pos Position) ([]Location, error)
	Rename(ctx context.Context, path string, pos Position, newName string) ([]TextEdit, error)
}

// NewHandler adapts a Backend into a bridge handler. Unknown methods and
// undecodable arguments are hard wire errors: they indicate contract drift
// between the two sides, never a condition to degrade silently.
func NewHandler(b Backend) bridge.Handler {
	return func(ctx context.Context, method string, args []msgpack.RawMessage) (any, error) {
		switch method {
		case methodLoadFiles:
			var files []File
			if err := decodeArgs(method, args, &files); err != nil {
				return nil, err
			}
			return nil, b.LoadFiles(ctx, files)
		case methodLoadCrate:
			var name, source, manifest string
			if err := decodeArgs(method, args, &name, &source, &manifest); err != nil {
				return nil, err
			}
			return b.LoadCrate(ctx, name, source, manifest)
		case methodRegisterEmptyCrate:
			var name string
			if err := decodeArgs(method, args, &name); err != nil {
				return nil, err
			}
			return nil, b.RegisterEmptyCrate(ctx, name)
		case methodDiagnostics:
			var path, content string
			if err := decodeArgs(method, args, &path, &content); err != nil {
				return nil, err
			}
			return b.Diagnostics(ctx, path, content)
		case methodHover:
			var path string
			var pos Position
			if err := decodeArgs(method, args, &path, &pos); err != nil {
				return nil, err
			}
			return b.Hover(ctx, path, pos)
		case methodCompletion:
			var path string
			var pos Position
			if err := decodeArgs(method, args, &path, &pos); err != nil {
				return nil, err
			}
			return b.Completion(ctx, path, pos)
		case methodDefinition:
			var path string
			var pos Position
			if err := decodeArgs(method, args, &path, &pos); err != nil {
				return nil, err
			}
			return b.Definition(ctx, path, pos)
		case methodRename:
			var path, newName string
			var pos Position
			if err := decodeArgs(method, args, &path, &pos, &newName); err != nil {
				return nil, err
			}
			return b.Rename(ctx, path, pos, newName)
		default:
			return nil, fmt.Errorf("unknown method %q", method)
		}
	}
}

func decodeArgs(method string, args []msgpack.RawMessage, dests ...any) error {
	if len(args) != len(dests) {
		return fmt.Errorf("%s: expected %d args, got %d", method, len(dests), len(args))
	}
	for i, raw := range args {
		if err := msgpack.Unmarshal(raw, dests[i]); err != nil {
			return fmt.Errorf("%s: decode arg %d: %w", method, i, err)
		}
	}
	return nil
}
