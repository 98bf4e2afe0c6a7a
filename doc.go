/*
Copyright (c) 2013-2018 The btcsuite developers
Use of this source code is governed by an ISC
license that can be found in the LICENSE file.

Pocd is a full node for a proof-of-capacity blockchain.

It keeps a single linear chain in LevelDB, imports blocks from its peers,
verifies them in the background and, when forging is enabled, forges blocks
with a key derived from a BIP-39 mnemonic.

The default options are sane for most users. This means pocd will work 'out of
the box' for most users. However, there are also a wide variety of flags that
can be used to control it.

Usage:

	pocd [OPTIONS]

Application Options:
  -V, --version                    Display version information and exit
  -b, --appdir=                    Directory to store data
  -C, --configfile=                Path to configuration file
      --logdir=                    Directory to log output.
  -d, --debuglevel=                Logging level for all subsystems {trace,
                                   debug, info, warn, error, critical}
      --listen=                    Add an interface/port to listen for peer
                                   requests (default all interfaces port: 8123,
                                   simnet: 18123)
      --connect=                   Connect to the specified peers at startup
      --maxbroadcastpeers=         Number of peers a new block is announced to
      --acceleratedverify          Verify staged blocks in batches when the
                                   verification queue is long
      --acceleratedqueuethreshold= Number of unverified blocks above which
                                   batches are verified
      --acceleratedbatchsize=      Maximum number of blocks verified in one batch
      --trimderivedtables          Trim derived table history below the
                                   rollback window
      --forcescan                  Rescan the chain from genesis at startup
      --forcevalidate              Revalidate every block during the forced
                                   rescan -- requires --forcescan
      --blockcachemb=              Maximum size of the staged block cache, in
                                   megabytes
      --blockcachecount=           Maximum number of blocks in the staged block
                                   cache
      --maxunconfirmed=            Maximum number of transactions in the
                                   unconfirmed pool
      --metricslisten=             Serve prometheus metrics on the given
                                   interface/port
      --forging                    Forge blocks with the key derived from
                                   --mnemonic-file
      --mnemonic-file=             File holding the BIP-39 mnemonic of the
                                   forging key
      --profile=                   Enable HTTP profiling on given port
      --simnet                     Use the simulation test network

Help Options:
  -h, --help           Show this help message
*/
package main
