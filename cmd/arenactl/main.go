// arenactl exercises the arena manager against real OS memory: reserving
// regions and huge pages, running allocation/free/purge smoke cycles, and
// reporting manager state.
package main

func main() {
	execute()
}
