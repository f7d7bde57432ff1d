/*
Package cbanalytics is a client for executing SQL++ analytics queries
against a Couchbase analytics service over HTTP(S).

A Cluster owns the shared transport and the defaults every query
inherits. ExecuteQuery submits a statement and returns a QueryResult that
streams rows as the server produces them:

	cluster, err := cbanalytics.NewCluster("https://analytics.example.com",
		cbanalytics.ClusterOptions{
			Credential: cbanalytics.NewCredential("user", "password"),
		})
	if err != nil {
		// handle err
	}

	result, err := cluster.ExecuteQuery(ctx, "SELECT RAW a.name FROM airlines a",
		cbanalytics.QueryOptions{Deserializer: deserializer})
	if err != nil {
		// handle err
	}
	for result.Next() {
		row, err := result.Row()
		// ...
	}
	md, err := result.MetaData()

Rows are delivered in server order while the response is still being
read; trailing metadata becomes available once the row stream has fully
drained. Failed attempts are retried against alternate resolved addresses
with exponential backoff until the query's deadline elapses or the
failure is not retriable. Surfaced errors are the typed kinds defined in
the cbaerr package, apart from cancellation, which surfaces as an
unwrapped AbortError.
*/
package cbanalytics
