/*
Package signals collects client behaviour events and turns them into layout
suggestions.

The Agent queues view, scroll, click and conversion signals and ships them to
the signals table in batches: a full batch goes out at once, a partial one
after the flush interval. Sends run in the background and a failed batch is
logged and counted as dropped, never re-queued.

Suggestions come from a small ordered catalog of heuristics (heuristics.yaml)
evaluated against a page's layout and the agent's running view and conversion
counts. Mutate turns a suggestion into a concrete PageMutation that the
storage gateway can write back with an update-by-filter.
*/
package signals
