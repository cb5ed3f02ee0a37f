package gestalt

import "fmt"

// Group accumulates the selections of every deferred selector sharing a
// group key before any of them is expanded. A custom group may reorder,
// deduplicate or rewrite the combined result through Entries.
type Group interface {
	// Process feeds one selector's output into the group.
	Process(importing *TypeMetadata, selector ImportSelector)

	// Entries returns the class names to import, each paired with the
	// metadata of the source that asked for it.
	Entries() []GroupEntry
}

// GroupEntry is one deferred import to expand.
type GroupEntry struct {
	Metadata  *TypeMetadata
	ClassName string
}

// defaultGroup forwards each selector's output unchanged.
type defaultGroup struct {
	entries []GroupEntry
}

func (g *defaultGroup) Process(importing *TypeMetadata, selector ImportSelector) {
	for _, name := range selector.SelectImports(importing) {
		g.entries = append(g.entries, GroupEntry{Metadata: importing, ClassName: name})
	}
}

func (g *defaultGroup) Entries() []GroupEntry { return g.entries }

// deferredImport is one queued deferred selector together with the source
// and the declaring metadata that referenced it.
type deferredImport struct {
	source   *ComponentSource
	metadata *TypeMetadata
	selector DeferredImportSelector
}

type deferredGrouping struct {
	group   Group
	imports []*deferredImport
}

// processDeferredImports drains the deferred queue collected during the
// pass: selectors are ordered, partitioned into groups, and each group's
// combined entries are expanded through the regular import path. Selectors
// reached while draining run immediately.
func (r *Resolver) processDeferredImports() error {
	deferred := r.deferred
	r.deferred = nil
	if len(deferred) == 0 {
		return nil
	}

	sortByOrder(deferred, func(a, b any) int {
		return orderOf(a.(*deferredImport).selector) - orderOf(b.(*deferredImport).selector)
	})

	var keys []string
	groupings := make(map[string]*deferredGrouping)
	for i, di := range deferred {
		key := di.selector.GroupKey()
		if key == "" {
			// Isolated default group per selector.
			key = fmt.Sprintf("\x00isolated-%d", i)
		}
		grouping, ok := groupings[key]
		if !ok {
			grouping = &deferredGrouping{group: r.newGroup(di.selector)}
			groupings[key] = grouping
			keys = append(keys, key)
		}
		grouping.imports = append(grouping.imports, di)
	}

	for _, key := range keys {
		grouping := groupings[key]
		for _, di := range grouping.imports {
			grouping.group.Process(di.metadata, di.selector)
		}
		sourceByClass := make(map[string]*ComponentSource, len(grouping.imports))
		for _, di := range grouping.imports {
			sourceByClass[di.metadata.ClassName] = di.source
		}
		for _, entry := range grouping.group.Entries() {
			src, ok := sourceByClass[entry.Metadata.ClassName]
			if !ok {
				// Entry attributed to metadata outside the group; fall back
				// to the first member's source.
				src = grouping.imports[0].source
			}
			if err := r.processImports(src, entry.Metadata, []string{entry.ClassName}, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resolver) newGroup(selector DeferredImportSelector) Group {
	var group Group
	if supplier, ok := selector.(GroupSupplier); ok {
		group = supplier.NewGroup()
	}
	if group == nil {
		group = &defaultGroup{}
	}
	applyAware(group, r.environment, r.loader, r.registry, r.logger)
	return group
}
