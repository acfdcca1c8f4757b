/*
Package redissentinel keeps topology of sentinel-monitored master groups current.

At start every configured group is resolved by asking sentinels, in order,
for current master address ("SENTINEL get-master-addr-by-name"). All groups
must be resolved, otherwise construction fails with ErrConfiguration.

Then one listener per distinct sentinel endpoint subscribes to "+switch-master"
channel. On failover notification about tracked group, listener publishes a
copy of topology with only that group replaced. Listener reconnects after
a fixed pause until Watcher is closed. There is no polling: the only extra
queries are made right after (re)subscription, to catch failovers which
happened while listener was disconnected.
*/
package redissentinel
