package binding

import (
	"context"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/docstore"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/script"
)

var (
	document  = host.Record()
	documents = host.List(document)

	indexSig     = host.Func(wit.String{})
	docSig       = host.Func(wit.String{}, document).Returns(wit.String{})
	bulkSig      = host.Func(wit.String{}, documents)
	deleteDocSig = host.Func(wit.String{}, wit.String{})
	searchSig    = host.Func(wit.String{}).Returns(documents)
)

// Elastic exposes a document store to a script runtime as an object whose
// methods return tokens. Store calls run off the loop; a failed call
// rejects its token with the store's io error.
type Elastic struct {
	rt    *script.Runtime
	store docstore.Store
	obj   host.Handle
}

// NewElastic creates the "elastic" host object over store.
func NewElastic(ctx context.Context, rt *script.Runtime, store docstore.Store) (*Elastic, error) {
	obj, err := rt.NewObject(ctx, "elastic")
	if err != nil {
		return nil, err
	}
	e := &Elastic{rt: rt, store: store, obj: obj}

	methods := []method{
		{"createIndex", indexSig, e.createIndex},
		{"deleteIndex", indexSig, e.deleteIndex},
		{"index", docSig, e.index},
		{"bulkIndex", bulkSig, e.bulkIndex},
		{"delete", deleteDocSig, e.delete},
		{"deleteAll", indexSig, e.deleteAll},
		{"search", searchSig, e.search},
	}
	if err := define(ctx, rt, obj, methods); err != nil {
		return nil, err
	}
	return e, nil
}

// Handle returns the host object handle.
func (e *Elastic) Handle() host.Handle {
	return e.obj
}

// Store returns the document store behind the object.
func (e *Elastic) Store() docstore.Store {
	return e.store
}

type method struct {
	name string
	sig  *host.Signature
	fn   script.Func
}

func define(ctx context.Context, rt *script.Runtime, obj host.Handle, methods []method) error {
	for _, m := range methods {
		if err := rt.Define(ctx, obj, m.name, m.sig, m.fn); err != nil {
			return err
		}
	}
	return nil
}

// async runs fn off the loop and returns the token it settles.
func (e *Elastic) async(c *script.Call, index string, fn func(ctx context.Context) (any, error)) *host.Token {
	return e.rt.Go(c.Context, c.Name, func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			Logger().Debug("store call failed",
				zap.String("method", c.Name), zap.String("index", index), zap.Error(err))
			return nil, err
		}
		return v, nil
	})
}

func (e *Elastic) createIndex(c *script.Call) (any, error) {
	index, err := c.String(0)
	if err != nil {
		return nil, err
	}
	return e.async(c, index, func(ctx context.Context) (any, error) {
		return nil, e.store.CreateIndex(ctx, index)
	}), nil
}

func (e *Elastic) deleteIndex(c *script.Call) (any, error) {
	index, err := c.String(0)
	if err != nil {
		return nil, err
	}
	return e.async(c, index, func(ctx context.Context) (any, error) {
		return nil, e.store.DeleteIndex(ctx, index)
	}), nil
}

func (e *Elastic) index(c *script.Call) (any, error) {
	index, err := c.String(0)
	if err != nil {
		return nil, err
	}
	doc, err := host.ConvertTo[docstore.Document](c.Arg(1))
	if err != nil {
		return nil, err
	}
	return e.async(c, index, func(ctx context.Context) (any, error) {
		return e.store.Index(ctx, index, doc)
	}), nil
}

func (e *Elastic) bulkIndex(c *script.Call) (any, error) {
	index, err := c.String(0)
	if err != nil {
		return nil, err
	}
	docs, err := host.ConvertTo[[]docstore.Document](c.Arg(1))
	if err != nil {
		return nil, err
	}
	return e.async(c, index, func(ctx context.Context) (any, error) {
		return nil, e.store.BulkIndex(ctx, index, docs)
	}), nil
}

func (e *Elastic) delete(c *script.Call) (any, error) {
	index, err := c.String(0)
	if err != nil {
		return nil, err
	}
	id, err := c.String(1)
	if err != nil {
		return nil, err
	}
	return e.async(c, index, func(ctx context.Context) (any, error) {
		return nil, e.store.Delete(ctx, index, id)
	}), nil
}

func (e *Elastic) deleteAll(c *script.Call) (any, error) {
	index, err := c.String(0)
	if err != nil {
		return nil, err
	}
	return e.async(c, index, func(ctx context.Context) (any, error) {
		return nil, e.store.DeleteAll(ctx, index)
	}), nil
}

func (e *Elastic) search(c *script.Call) (any, error) {
	index, err := c.String(0)
	if err != nil {
		return nil, err
	}
	return e.async(c, index, func(ctx context.Context) (any, error) {
		docs, err := e.store.Search(ctx, index)
		if err != nil {
			return nil, err
		}
		return host.Normalize(docs), nil
	}), nil
}
