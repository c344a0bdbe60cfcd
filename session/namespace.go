package session

import "context"

// Namespace scopes kv to one device: every key is stored as "<ns>:<key>".
// The result keeps batch writes when kv supports them.
func Namespace(kv Storage, ns string) Storage {
	n := namespaced{kv: kv, prefix: ns + ":"}
	if b, ok := kv.(BatchStorage); ok {
		return namespacedBatch{namespaced: n, batch: b}
	}
	return n
}

type namespaced struct {
	kv     Storage
	prefix string
}

func (n namespaced) key(k string) string { return n.prefix + k }

func (n namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.kv.Get(ctx, n.key(key))
}

func (n namespaced) Set(ctx context.Context, key, value string) error {
	return n.kv.Set(ctx, n.key(key), value)
}

func (n namespaced) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.key(key))
}

type namespacedBatch struct {
	namespaced
	batch BatchStorage
}

func (n namespacedBatch) SetMany(ctx context.Context, entries map[string]string) error {
	scoped := make(map[string]string, len(entries))
	for k, v := range entries {
		scoped[n.key(k)] = v
	}
	return n.batch.SetMany(ctx, scoped)
}

func (n namespacedBatch) DeleteMany(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = n.key(k)
	}
	return n.batch.DeleteMany(ctx, scoped...)
}
