package main

import (
	"fmt"
	"github.com/btcsuite/btcd/btcutil/base58"
)

func main() {
	_, _, err := base58.CheckDecode("xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPfqctTa44Z3VLYKnMGeZ9XdfdeLVgi4Ff6vUD4JmQVh9zMgAb8tEphPuB")
	fmt.Println(err)
}
