/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// attackgen replays realistic attacker behavior against a running
// instance: SSH brute force, HTTP scanning, telnet logins, MQTT probes
// and camera hits. Soak testing and demo data only; point it at your
// own deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit"
	"golang.org/x/time/rate"

	"github.com/rootxtrem3/Cyber-Group-20/version"
)

var (
	target     = flag.String("target", "127.0.0.1", "target host running the decoys")
	count      = flag.Int("count", 100, "total attacks to run")
	rateLimit  = flag.Float64("rate", 5, "attacks per second")
	seed       = flag.Int64("seed", 0, "RNG seed, 0 means time based")
	services   = flag.String("services", "ssh,http,telnet,mqtt,camera", "comma separated services to hit")
	sshPort    = flag.Int("ssh-port", 2222, "ssh decoy port")
	httpPort   = flag.Int("http-port", 8080, "http decoy port")
	telnetPort = flag.Int("telnet-port", 2323, "telnet decoy port")
	mqttPort   = flag.Int("mqtt-port", 1883, "mqtt decoy port")
	cameraPort = flag.Int("camera-port", 5000, "camera decoy port")
	ver        = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *ver {
		version.PrintVersion(os.Stdout)
		return
	}
	if *count <= 0 || *rateLimit <= 0 {
		log.Fatal("count and rate must be positive")
	}
	sd := *seed
	if sd == 0 {
		sd = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(sd))
	gofakeit.Seed(sd)

	var attacks []attack
	for _, svc := range strings.Split(*services, `,`) {
		switch strings.TrimSpace(svc) {
		case `ssh`:
			attacks = append(attacks, sshAttack{addr(*sshPort)})
		case `http`:
			attacks = append(attacks, httpAttack{addr(*httpPort)})
		case `telnet`:
			attacks = append(attacks, telnetAttack{addr(*telnetPort)})
		case `mqtt`:
			attacks = append(attacks, mqttAttack{addr(*mqttPort)})
		case `camera`:
			attacks = append(attacks, cameraAttack{addr(*cameraPort)})
		case ``:
		default:
			log.Fatalf("unknown service %q", svc)
		}
	}
	if len(attacks) == 0 {
		log.Fatal("no services selected")
	}

	lim := rate.NewLimiter(rate.Limit(*rateLimit), 1)
	start := time.Now()
	var ok, failed int
	for i := 0; i < *count; i++ {
		if err := lim.Wait(context.Background()); err != nil {
			break
		}
		if err := attacks[rng.Intn(len(attacks))].run(rng); err != nil {
			failed++
		} else {
			ok++
		}
	}
	fmt.Printf("Completed %d attacks in %v (%d failed to connect, seed %d)\n",
		ok+failed, time.Since(start).Round(time.Millisecond), failed, sd)
}

func addr(port int) string {
	return fmt.Sprintf("%s:%d", *target, port)
}
